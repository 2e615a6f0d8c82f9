package notify

import "github.com/tphakala/quack-go/internal/logger"

// GetLogger returns the notify module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notify")
}
