package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"panic": zapcore.PanicLevel,
		"fatal": zapcore.FatalLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestFromContext verifies context round-trip and the global fallback.
func TestFromContext(t *testing.T) {
	t.Parallel()

	require.Same(t, global, FromContext(context.Background()))

	core, logs := observer.New(zapcore.InfoLevel)
	scoped := zap.New(core).Sugar()

	ctx := ToContext(context.Background(), scoped)
	ctx = WithName(ctx, "scope")

	Info(ctx, "hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "hello", entries[0].Message)
	require.Equal(t, "scope", entries[0].LoggerName)
}

// TestWithKV verifies key-value pairs attached via context appear on messages.
func TestWithKV(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithKV(ctx, "phase", "install")

	Warn(ctx, "careful")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "install", entries[0].ContextMap()["phase"])
}

// TestWithLevel verifies the per-logger level override suppresses lower levels.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core, WithLevel(zapcore.WarnLevel)).Sugar()

	l.Info("dropped")
	l.Warn("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "kept", entries[0].Message)
}
