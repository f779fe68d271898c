package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevels(t *testing.T) {
	for _, tc := range []struct {
		name          string
		log           func(l *ZapLogger, msg string)
		expectedLevel zapcore.Level
	}{
		{name: "debug", log: func(l *ZapLogger, m string) { l.Debug(m) }, expectedLevel: zapcore.DebugLevel},
		{name: "info", log: func(l *ZapLogger, m string) { l.Info(m) }, expectedLevel: zapcore.InfoLevel},
		{name: "warn", log: func(l *ZapLogger, m string) { l.Warn(m) }, expectedLevel: zapcore.WarnLevel},
		{name: "error", log: func(l *ZapLogger, m string) { l.Error(m) }, expectedLevel: zapcore.ErrorLevel},
	} {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			dut := &ZapLogger{zap.New(core)}

			tc.log(dut, "person created")

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			require.Equal(t, "person created", entry.Message)
			require.Equal(t, tc.expectedLevel, entry.Level)
			require.Empty(t, entry.ContextMap())
		})
	}
}

func TestWithContextAddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dut := &ZapLogger{zap.New(core)}

	ctx := ContextWithFields(context.Background(), zap.String("request_id", "abc"))
	ctx = ContextWithFields(ctx, zap.String("user_id", "u1"))

	dut.InfoWithContext(ctx, "family loaded", zap.String("family_id", "f1"))
	dut.WarnWithContext(context.Background(), "no fields")

	require.Equal(t, 2, logs.Len())
	require.Equal(t, map[string]interface{}{
		"request_id": "abc",
		"user_id":    "u1",
		"family_id":  "f1",
	}, logs.All()[0].ContextMap())
	require.Empty(t, logs.All()[1].ContextMap())
}

func TestNewLogger(t *testing.T) {
	t.Run("none_level_is_noop", func(t *testing.T) {
		l, err := NewLogger(WithLevel("none"))
		require.NoError(t, err)
		require.NotNil(t, l)
	})

	t.Run("unknown_level", func(t *testing.T) {
		_, err := NewLogger(WithLevel("verbose"))
		require.ErrorContains(t, err, "unknown log level")
	})

	t.Run("unknown_timestamp_format", func(t *testing.T) {
		_, err := NewLogger(WithTimestampFormat("RFC1123"))
		require.ErrorContains(t, err, "unknown timestamp format")
	})

	t.Run("json_unix", func(t *testing.T) {
		l, err := NewLogger(WithFormat("json"), WithLevel("debug"), WithTimestampFormat("Unix"))
		require.NoError(t, err)
		require.NotNil(t, l)
	})

	t.Run("must_panics", func(t *testing.T) {
		require.Panics(t, func() {
			MustNewLogger("text", "loud", "ISO8601")
		})
	})
}

func TestObserverLogger(t *testing.T) {
	l, logs := NewObserverLogger("warn")
	l.Info("dropped")
	l.Error("kept")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "kept", logs.TakeAll()[0].Message)
	require.Equal(t, 0, logs.Len())
}
