package logger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
)

func TestSetup(t *testing.T) {
	// Not parallel: Setup mutates the process-wide default logger.
	original := slog.Default()
	defer slog.SetDefault(original)

	for _, level := range []string{"debug", "info", "warn", "error", "INFO", "bogus"} {
		log, err := logger.Setup(config.ServerConfig{Port: 8080, LogLevel: level})
		assert.NoError(t, err, "level %q", level)
		assert.NotNil(t, log, "level %q", level)
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// Without an attached logger, the default is returned
	assert.Equal(t, slog.Default(), logger.FromContext(ctx))

	attached := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx = logger.WithLogger(ctx, attached)
	assert.Equal(t, attached, logger.FromContext(ctx))
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Empty context falls back to the provided default
	assert.Equal(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	// A nil default falls back to slog.Default
	assert.Equal(t, slog.Default(), logger.FromContextOrDefault(context.Background(), nil))

	// An attached logger wins over the default
	attached := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := logger.WithLogger(context.Background(), attached)
	assert.Equal(t, attached, logger.FromContextOrDefault(ctx, fallback))
}
