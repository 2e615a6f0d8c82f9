// Package conf provides configuration management for quack-go.
package conf

import "github.com/tphakala/quack-go/internal/logger"

// GetLogger returns the config package logger. It is fetched from the global
// logger on every call because the central logger is set after config loads.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
