package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/quack-go/internal/privacy"
)

// GormAdapter routes GORM output to a module logger. Statements are logged
// at TRACE, so they only show up when the datastore module runs at trace
// level. The preference table stores the server address, so URLs in
// statements are anonymized before they are logged.
type GormAdapter struct {
	logger        Logger
	slowThreshold time.Duration
}

// NewGormAdapter returns an adapter that warns about statements slower than
// slowThreshold. Zero disables the slow statement warning.
func NewGormAdapter(log Logger, slowThreshold time.Duration) *GormAdapter {
	if log == nil {
		log = NewDiscardLogger()
	}
	return &GormAdapter{
		logger:        log,
		slowThreshold: slowThreshold,
	}
}

// LogMode is a no-op; levels come from the module configuration.
func (a *GormAdapter) LogMode(_ gormlogger.LogLevel) gormlogger.Interface {
	return a
}

// Info maps GORM's chatty info output to DEBUG.
func (a *GormAdapter) Info(ctx context.Context, msg string, data ...any) {
	a.logger.WithContext(ctx).Debug(privacy.ScrubMessage(fmt.Sprintf(msg, data...)))
}

func (a *GormAdapter) Warn(ctx context.Context, msg string, data ...any) {
	a.logger.WithContext(ctx).Warn(privacy.ScrubMessage(fmt.Sprintf(msg, data...)))
}

func (a *GormAdapter) Error(ctx context.Context, msg string, data ...any) {
	a.logger.WithContext(ctx).Error(privacy.ScrubMessage(fmt.Sprintf(msg, data...)))
}

// Trace logs one statement. A missing preference row is the normal first-run
// case and is not treated as a failure.
func (a *GormAdapter) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []Field{
		String("sql", privacy.ScrubMessage(sql)),
		Int64("rows", rows),
		Duration("elapsed", elapsed),
	}
	log := a.logger.WithContext(ctx)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn("statement failed", append(fields, Error(err))...)
	case a.slowThreshold > 0 && elapsed > a.slowThreshold:
		log.Warn("slow statement", append(fields, Duration("threshold", a.slowThreshold))...)
	default:
		log.Trace("statement", fields...)
	}
}
