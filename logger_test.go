package qpgo

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLogger_WritesThroughToSlog(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, nil)
	logger := NewSlogLogger(slog.New(handler))

	logger.Info("hello", "key", "value")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "key=value")
}

func TestNewSlogLogger_NilUsesDefault(t *testing.T) {
	logger := NewSlogLogger(nil)
	assert.NotPanics(t, func() { logger.Debug("noop") })
}

func TestNewDefaultLogger_LeveledByDebugFlag(t *testing.T) {
	quiet := newDefaultLogger(false)
	assert.False(t, quiet.logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, quiet.logger.Enabled(context.Background(), slog.LevelInfo))

	verbose := newDefaultLogger(true)
	assert.True(t, verbose.logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewFramework_DebugConfigLevelsDefaultLogger(t *testing.T) {
	quiet := NewFramework()
	sl, ok := quiet.logger.(*SlogLogger)
	assert.True(t, ok)
	assert.False(t, sl.logger.Enabled(context.Background(), slog.LevelDebug))

	verbose := NewFramework(WithConfig(Config{Debug: true}))
	sl, ok = verbose.logger.(*SlogLogger)
	assert.True(t, ok)
	assert.True(t, sl.logger.Enabled(context.Background(), slog.LevelDebug))

	custom := NewFramework(WithLogger(NewSlogLogger(nil)), WithConfig(Config{Debug: true}))
	sl, ok = custom.logger.(*SlogLogger)
	assert.True(t, ok)
	assert.False(t, sl.logger.Enabled(context.Background(), slog.LevelDebug),
		"explicit WithLogger must not be re-leveled by Config.Debug")
}

func TestNoopLogger_DiscardsEverything(t *testing.T) {
	var l noopLogger
	assert.NotPanics(t, func() {
		l.Info("x")
		l.Warn("x")
		l.Error("x")
		l.Debug("x")
	})
}
