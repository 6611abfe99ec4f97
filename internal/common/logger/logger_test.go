package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapAdapter(zap.New(core)), logs
}

func TestZapAdapter_Fields(t *testing.T) {
	log, logs := observed()

	log.With(map[string]interface{}{"requestId": "abc"}).
		Warn("upstream failed", map[string]interface{}{
			"attempt": 2,
			"error":   errors.New("boom"),
		})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "upstream failed", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "abc", ctx["requestId"])
	assert.EqualValues(t, 2, ctx["attempt"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestWithError(t *testing.T) {
	log, logs := observed()

	log.WithError(errors.New("bad key")).Error("auth failed", nil)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bad key", logs.All()[0].ContextMap()["error"])
}

func TestContextLogger(t *testing.T) {
	fallback := NewNoOpLogger()
	scoped, logs := observed()

	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	ctx := WithContext(context.Background(), scoped)
	FromContext(ctx, fallback).Info("scoped", nil)
	assert.Equal(t, 1, logs.Len())
}

func TestNew_Levels(t *testing.T) {
	assert.False(t, New("warn", "json").Core().Enabled(zapcore.InfoLevel))
	assert.True(t, New("debug", "console").Core().Enabled(zapcore.DebugLevel))
	assert.True(t, New("unknown", "console").Core().Enabled(zapcore.InfoLevel))
}
