package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// gormLogger routes GORM output through slog so query logs carry the same
// request, user and trace ids as the rest of the request.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs failed and slow statements. A zero slow threshold
// disables slow-query warnings.
func NewGormLogger(l *slog.Logger, slow time.Duration) logger.Interface {
	return &gormLogger{log: l, level: logger.Warn, slow: slow}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *gormLogger) emit(ctx context.Context, min logger.LogLevel, lvl slog.Level, msg string, args []interface{}) {
	if g.level >= min {
		g.log.Log(ctx, lvl, fmt.Sprintf(msg, args...))
	}
}

func (g *gormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	g.emit(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (g *gormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	g.emit(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (g *gormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	g.emit(ctx, logger.Error, slog.LevelError, msg, args)
}

// Trace is called once per statement. Not-found lookups and unique
// violations are expected outcomes here and are not logged as errors.
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var (
		lvl slog.Level
		msg string
	)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound) && !IsUniqueConstraintError(err):
		lvl, msg = slog.LevelError, "query failed"
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		lvl, msg = slog.LevelWarn, "slow query"
	case g.level >= logger.Info:
		lvl, msg = slog.LevelDebug, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, lvl, msg, attrs...)
}
