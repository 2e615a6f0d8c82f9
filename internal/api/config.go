// Package api provides the headless HTTP API of quack-go: catalog and daily
// selection reads, the settings surface and Server-Sent Event streams.
package api

import (
	"fmt"
	"time"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout       = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second

	// Streams stay open, so there is no write timeout by default
	DefaultWriteTimeout = 0
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port, empty host binds every interface

	AllowedOrigins []string // CORS allowed origins

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// HeartbeatInterval is the gap between keep-alive events on streams
	HeartbeatInterval time.Duration

	// StreamRate is the number of stream connections allowed per client
	// per minute
	StreamRate int

	BodyLimit string // e.g. "1M"

	// AutoTLS obtains certificates for TLSDomain from Let's Encrypt and
	// caches them in TLSCacheDir.
	AutoTLS     bool
	TLSDomain   string
	TLSCacheDir string

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:            ":8080",
		AllowedOrigins:    []string{"*"},
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		HeartbeatInterval: DefaultHeartbeatInterval,
		StreamRate:        10,
		BodyLimit:         "1M",
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	cfg.AutoTLS = settings.WebServer.AutoTLS
	cfg.TLSDomain = settings.WebServer.Domain
	cfg.TLSCacheDir = settings.WebServer.CertCache
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.AutoTLS && (c.TLSDomain == "" || c.TLSCacheDir == "") {
		return fmt.Errorf("auto TLS requires a domain and a certificate cache directory")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: listen=%s, autotls=%v, debug=%v", c.Listen, c.AutoTLS, c.Debug)
}
