package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/quack-go/internal/logger"
)

// Stream event names.
const (
	EventConnected = "connected"
	EventCatalog   = "catalog"
	EventDaily     = "daily"
	EventHeartbeat = "heartbeat"
)

// streamRateLimiter limits stream connections per client IP.
func (s *Server) streamRateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(s.config.StreamRate) / 60),
				Burst:     s.config.StreamRate,
				ExpiresIn: time.Minute,
			},
		),
		IdentifierExtractor: middleware.DefaultRateLimiterConfig.IdentifierExtractor,
		ErrorHandler: func(c echo.Context, err error) error {
			return s.HandleError(c, err, "Rate limit exceeded for stream connections", http.StatusTooManyRequests)
		},
		DenyHandler: func(c echo.Context, _ string, err error) error {
			return s.HandleError(c, err, "Too many stream connection attempts, please wait", http.StatusTooManyRequests)
		},
	})
}

// Stream sends the catalog and daily selection as Server-Sent Events. Each
// stream starts with the current values and then follows every change; a
// slow client only receives the newest value.
func (s *Server) Stream(c echo.Context) error {
	catalogSub := s.engine.SubscribeCatalog()
	defer catalogSub.Unsubscribe()
	dailySub := s.engine.SubscribeDaily()
	defer dailySub.Unsubscribe()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set(echo.HeaderCacheControl, "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	clientID := generateCorrelationID()
	s.streams.Add(1)
	defer s.streams.Add(-1)

	log := s.logger.With(logger.String("client_id", clientID))
	log.Info("stream client connected", logger.String("ip", c.RealIP()))
	defer log.Info("stream client disconnected")

	if err := writeEvent(c, EventConnected, map[string]string{"clientId": clientID}); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	reqCtx := c.Request().Context()
	for {
		var err error
		select {
		case snap, ok := <-catalogSub.C():
			if !ok {
				return nil
			}
			err = writeEvent(c, EventCatalog, snap)
		case e, ok := <-dailySub.C():
			if !ok {
				return nil
			}
			err = writeEvent(c, EventDaily, DailyResponse{Entity: e, Day: s.engine.Today()})
		case <-ticker.C:
			err = writeEvent(c, EventHeartbeat, map[string]int64{"timestamp": time.Now().Unix()})
		case <-reqCtx.Done():
			return nil
		case <-s.ctx.Done():
			return nil
		}
		if err != nil {
			log.Debug("stream write failed, client likely disconnected", logger.Error(err))
			return nil
		}
	}
}

// writeEvent writes one event and flushes it to the client.
func writeEvent(c echo.Context, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
