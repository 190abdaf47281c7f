package network

import (
	"testing"

	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/observability"
)

// SetupObservability initializes the global logger for a test and restores
// the pre-test state on cleanup, so that NewDefaultClientConfig's call to
// observability.GetLogger() never falls back to the noisy "requested before
// initialization" warning path.
func SetupObservability(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{
		Level:  "error",
		Format: "json",
	})
	t.Cleanup(observability.ResetForTest)
}
