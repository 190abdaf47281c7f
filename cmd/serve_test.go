// File: cmd/serve_test.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/service"
)

type stubFactory struct {
	components *service.Components
	err        error
}

func (f *stubFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*service.Components, error) {
	return f.components, f.err
}

func TestRunServe_RequiresConfig(t *testing.T) {
	err := runServe(context.Background(), nil, zap.NewNop(), &stubFactory{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a loaded configuration")
}

func TestRunServe_PropagatesFactoryError(t *testing.T) {
	factory := &stubFactory{err: errors.New("db unreachable")}
	err := runServe(context.Background(), config.NewDefaultConfig(), zap.NewNop(), factory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db unreachable")
}

func TestRunServe_ShutsDownOnContextCancellation(t *testing.T) {
	testCfg := config.NewDefaultConfig()
	factory := &stubFactory{components: &service.Components{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, testCfg, zap.NewNop(), factory)
	}()

	// Give the listener a moment to come up, then request shutdown.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runServe did not return after context cancellation")
	}
}

func TestRegisterReadinessHandler(t *testing.T) {
	mux := http.NewServeMux()
	registerReadinessHandler(mux)

	req := httptest.NewRequest(http.MethodGet, "/heal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}
