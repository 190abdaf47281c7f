package service

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/observability"
)

func TestMain(m *testing.M) {
	observability.InitializeLogger(config.LoggerConfig{Level: "error", Format: "json"})
	exitCode := m.Run()
	observability.Sync()
	os.Exit(exitCode)
}

func TestCreate_ValidationErrors(t *testing.T) {
	factory := NewComponentFactory()
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("missing database URL", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		_, err := factory.Create(ctx, cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database URL is not configured")
	})

	// Validating a real connection requires either a live database or
	// mocking pgxpool.New itself, which the factory currently calls
	// directly; exercising the success path belongs to an integration test
	// against a real (or dockertest-provisioned) Postgres instance.
}

func TestComponents_ShutdownIsSafeOnPartialState(t *testing.T) {
	c := &Components{}
	assert.NotPanics(t, func() { c.Shutdown() })
}
