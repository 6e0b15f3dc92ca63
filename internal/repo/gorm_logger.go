package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries logged at warn level.
const slowQueryThreshold = 200 * time.Millisecond

// zerologGorm sends GORM's logging to zerolog, using the request-scoped
// logger when the query context carries one. Record-not-found and unique
// violations are ledger outcomes mapped to ErrNotFound/ErrDuplicate and are
// not logged. SQL text, which carries user ids, is only logged at Info.
type zerologGorm struct {
	level logger.LogLevel
	slow  time.Duration
}

func newGormLogger(level logger.LogLevel) logger.Interface {
	return &zerologGorm{level: level, slow: slowQueryThreshold}
}

// gormLogLevel maps the service log level onto GORM's.
func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "trace":
		return logger.Info
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}

func (l *zerologGorm) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *zerologGorm) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		loggerFor(ctx).Info().Msgf(msg, args...)
	}
}

func (l *zerologGorm) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		loggerFor(ctx).Warn().Msgf(msg, args...)
	}
}

func (l *zerologGorm) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		loggerFor(ctx).Error().Msgf(msg, args...)
	}
}

func (l *zerologGorm) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && !isDuplicate(err):
		if l.level < logger.Error {
			return
		}
		ev = loggerFor(ctx).Error().Err(err)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		ev = loggerFor(ctx).Warn().Dur("threshold", l.slow)
	case l.level >= logger.Info:
		ev = loggerFor(ctx).Debug()
	default:
		return
	}

	sql, rows := fc()
	ev = ev.Dur("elapsed", elapsed).Int64("rows", rows)
	if l.level >= logger.Info {
		ev = ev.Str("sql", sql)
	}
	ev.Msg("gorm query")
}

func loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
