package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// QueryLoggerOptions tunes how gorm traffic reaches the zap logger.
type QueryLoggerOptions struct {
	// Level follows gorm's own scale: Silent, Error, Warn, Info.
	Level gormlogger.LogLevel
	// SlowThreshold marks statements above it as slow. Zero disables the
	// slow-query warning.
	SlowThreshold time.Duration
	// SkipNotFound drops ErrRecordNotFound from the error log. Lookups
	// that legitimately miss are routine here and reported to callers.
	SkipNotFound bool
}

// QueryLogger adapts gorm's logging interface onto the request-scoped zap
// logger, so query lines carry the request id and trace fields of the call
// they ran under.
type QueryLogger struct {
	opts QueryLoggerOptions
}

func NewQueryLogger(opts QueryLoggerOptions) *QueryLogger {
	return &QueryLogger{opts: opts}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.opts.Level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, zapcore.InfoLevel, gormlogger.Info, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, zapcore.WarnLevel, gormlogger.Warn, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.emit(ctx, zapcore.ErrorLevel, gormlogger.Error, msg, data)
}

func (l *QueryLogger) emit(ctx context.Context, at zapcore.Level, min gormlogger.LogLevel, msg string, data []interface{}) {
	if l.opts.Level < min {
		return
	}
	fields := []zap.Field{zap.String("component", "db")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("detail", data))
	}
	if entry := FromContext(ctx).Check(at, msg); entry != nil {
		entry.Write(fields...)
	}
}

// Trace writes one line per executed statement: errors at error level, slow
// statements at warn, and everything else at debug when Info logging is on.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.opts.Level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	notFound := errors.Is(err, gormlogger.ErrRecordNotFound)
	switch {
	case err != nil && l.opts.Level >= gormlogger.Error && !(notFound && l.opts.SkipNotFound):
		l.trace(ctx, zapcore.ErrorLevel, fc, elapsed, err)
	case l.opts.SlowThreshold > 0 && elapsed >= l.opts.SlowThreshold && l.opts.Level >= gormlogger.Warn:
		l.trace(ctx, zapcore.WarnLevel, fc, elapsed, nil)
	case l.opts.Level >= gormlogger.Info:
		l.trace(ctx, zapcore.DebugLevel, fc, elapsed, nil)
	}
}

// ParamsFilter keeps bound values out of the log. Statements against
// customers and payments carry emails and amounts that do not belong in
// log storage.
func (l *QueryLogger) ParamsFilter(ctx context.Context, sql string, params ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) trace(ctx context.Context, at zapcore.Level, fc func() (string, int64), elapsed time.Duration, err error) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("component", "db"),
		zap.String("statement", statementVerb(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	msg := "query"
	if at == zapcore.WarnLevel && err == nil {
		msg = "slow query"
	}
	if entry := FromContext(ctx).Check(at, msg); entry != nil {
		entry.Write(fields...)
	}
}

// statementVerb extracts the leading SQL verb, looking past CTE prefixes.
func statementVerb(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		switch verb := strings.Trim(token, "();"); verb {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return verb
		}
	}
	return "OTHER"
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
