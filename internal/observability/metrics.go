// Package observability provides the Prometheus registry and the /metrics
// handler for quack-go.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Catalog  *metrics.CatalogMetrics
	MQTT     *metrics.MQTTMetrics
}

// NewMetrics creates a private registry with every collector registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	catalogMetrics, err := metrics.NewCatalogMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Catalog:  catalogMetrics,
		MQTT:     mqttMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLogger{log: GetLogger()},
		ErrorHandling: promhttp.ContinueOnError,
		Timeout:       metrics.DefaultScrapeTimeout,
	})
}

// ErrorHook returns an errors hook that counts every built error by
// component and category.
func (m *Metrics) ErrorHook() errors.ErrorHook {
	return func(ee *errors.EnhancedError) {
		m.Catalog.RecordError(ee.GetComponent(), ee.GetCategory())
	}
}

// promErrorLogger adapts the module logger to promhttp.Logger.
type promErrorLogger struct {
	log logger.Logger
}

func (p promErrorLogger) Println(v ...any) {
	p.log.Warn("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
