package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/quack-go/internal/events"
	"github.com/tphakala/quack-go/internal/logger"
	"github.com/tphakala/quack-go/internal/model"
	"github.com/tphakala/quack-go/internal/observability/metrics"
)

// Publisher announces each new daily selection. Broker failures are logged
// and never reach the selector.
type Publisher struct {
	client  Client
	topic   string
	today   func() string
	logger  logger.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a publisher that stamps announcements with today().
func NewPublisher(client Client, topic string, today func() string, log logger.Logger, rec metrics.Recorder) *Publisher {
	if log == nil {
		log = GetLogger()
	}
	return &Publisher{
		client:  client,
		topic:   topic,
		today:   today,
		logger:  log,
		metrics: metrics.OrNoOp(rec),
	}
}

// Run publishes every non-nil selection received on sub until ctx is done
// or sub closes. It connects lazily and retries the connection on the next
// selection after a failure.
func (p *Publisher) Run(ctx context.Context, sub *events.Subscription[*model.Entity]) {
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C():
			if !ok {
				return
			}
			if e == nil {
				continue
			}
			if err := p.Announce(ctx, e); err != nil {
				p.logger.Warn("daily announcement failed",
					logger.String("name", e.Name),
					logger.Error(err))
			}
		}
	}
}

// Announce publishes one selection.
func (p *Publisher) Announce(ctx context.Context, e *model.Entity) error {
	if !p.client.IsConnected() {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := p.client.Connect(connectCtx)
		cancel()
		if err != nil {
			p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusTransportError)
			return err
		}
	}

	payload, err := json.Marshal(NewAnnouncement(e, p.today()))
	if err != nil {
		p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusError)
		return err
	}

	if err := p.client.Publish(ctx, p.topic, payload); err != nil {
		p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusError)
		return err
	}

	p.metrics.RecordOperation(metrics.OpMQTTPublish, metrics.StatusSuccess)
	p.logger.Info("daily selection announced",
		logger.String("topic", p.topic),
		logger.String("name", e.Name))
	return nil
}

// Close disconnects the client.
func (p *Publisher) Close() {
	p.client.Disconnect()
}
