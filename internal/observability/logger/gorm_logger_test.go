package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observedGlobals(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestQueryLogger_SlowStatementWarns(t *testing.T) {
	logs := observedGlobals(t)
	l := NewQueryLogger(QueryLoggerOptions{
		Level:         gormlogger.Warn,
		SlowThreshold: 10 * time.Millisecond,
	})

	l.Trace(context.Background(), time.Now().Add(-50*time.Millisecond), func() (string, int64) {
		return "SELECT * FROM user_invoices", 3
	}, nil)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "slow query", entries[0].Message)
	assert.Equal(t, "SELECT", entries[0].ContextMap()["statement"])
}

func TestQueryLogger_FastStatementSilentAtWarn(t *testing.T) {
	logs := observedGlobals(t)
	l := NewQueryLogger(QueryLoggerOptions{
		Level:         gormlogger.Warn,
		SlowThreshold: time.Second,
	})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)

	assert.Empty(t, logs.All())
}

func TestQueryLogger_NotFoundSkipped(t *testing.T) {
	logs := observedGlobals(t)
	l := NewQueryLogger(QueryLoggerOptions{
		Level:        gormlogger.Error,
		SkipNotFound: true,
	})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM containers WHERE id = ?", 0
	}, gormlogger.ErrRecordNotFound)

	assert.Empty(t, logs.All())

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "INSERT INTO containers (id) VALUES (?)", 0
	}, context.DeadlineExceeded)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "INSERT", entries[0].ContextMap()["statement"])
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "INSERT", statementVerb("INSERT INTO payments (id) VALUES (?)"))
	assert.Equal(t, "SELECT", statementVerb("WITH latest AS (SELECT 1) SELECT * FROM latest"))
	assert.Equal(t, "OTHER", statementVerb("PRAGMA foreign_keys"))
}
