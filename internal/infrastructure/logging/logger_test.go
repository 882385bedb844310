package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/id"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("window created", zap.Int("index", 2))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"window created"`)
	assert.Contains(t, string(data), `"index":2`)
	assert.Contains(t, string(data), `"logger":"devicematrix"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestWithContextAddsTraceFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	trace := id.NewTraceID()
	ctx := tracing.WithTraceID(context.Background(), trace)
	logger.WithContext(ctx).Info("traced")
	logger.WithContext(context.Background()).Info("plain")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), string(trace))
}

func TestFallbacks(t *testing.T) {
	assert.NotNil(t, NewDefault())
	assert.NotNil(t, NewDevelopment())
	assert.NotNil(t, Nop().Component("store"))
}
