package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

const defaultSlowQuery = 200 * time.Millisecond

// gormLogger sends GORM output through zerolog. Record-not-found is expected
// on every get-or-create lookup and is never logged.
type gormLogger struct {
	log   zerolog.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(log zerolog.Logger, slow time.Duration) *gormLogger {
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &gormLogger{
		log:   log.With().Str("component", "database").Logger(),
		level: gormlogger.Warn,
		slow:  slow,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.event(ctx, l.log.Info()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.event(ctx, l.log.Warn()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.event(ctx, l.log.Error()).Msg(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound) && !IsUniqueViolation(err):
		query, rows := fc()
		l.event(ctx, l.log.Error()).Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", query).Msg("query failed")
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		query, rows := fc()
		l.event(ctx, l.log.Warn()).Dur("elapsed", elapsed).Dur("threshold", l.slow).Int64("rows", rows).Str("sql", query).Msg("slow query")
	case l.level >= gormlogger.Info:
		query, rows := fc()
		l.event(ctx, l.log.Debug()).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", query).Msg("query")
	}
}

func (l *gormLogger) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if requestID := platformerrors.RequestIDFromContext(ctx); requestID != "" {
		e = e.Str("request_id", requestID)
	}
	return e
}
