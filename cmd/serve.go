// File: cmd/serve.go
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/internal/config"
	"github.com/codeguard-pro/codeguard/internal/observability"
	"github.com/codeguard-pro/codeguard/internal/service"
)

// newServeCmd creates the command that boots the long-running server
// process: the GitHub App webhook intake and the healing SSE gateway.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CodeGuard Pro webhook and healing server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg, observability.GetLogger(), service.NewComponentFactory())
		},
	}
}

// runServe contains the testable business logic for the command: wire the
// long-lived components, start the HTTP listener, and block until the
// process is asked to shut down.
func runServe(ctx context.Context, cfg config.Interface, logger *zap.Logger, factory service.ComponentFactory) error {
	if cfg == nil {
		return errors.New("serve requires a loaded configuration")
	}

	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Shutdown()

	mux := http.NewServeMux()
	registerReadinessHandler(mux)
	if components.Webhook != nil {
		handler := http.Handler(components.Webhook)
		if components.RateLimiter != nil {
			handler = components.RateLimiter.Middleware(handler)
		}
		mux.Handle("POST /webhook", handler)
	} else {
		logger.Warn("webhook intake not wired (no forge credentials configured); POST /webhook will 404")
	}
	if components.SSE != nil {
		healHandler := http.HandlerFunc(components.SSE.HandleHeal)
		resultsHandler := http.HandlerFunc(components.SSE.HandleResults)
		if components.RateLimiter != nil {
			mux.Handle("POST /heal", components.RateLimiter.Middleware(healHandler))
			mux.Handle("GET /heal/results", components.RateLimiter.Middleware(resultsHandler))
			mux.Handle("POST /heal/results", components.RateLimiter.Middleware(resultsHandler))
		} else {
			mux.Handle("POST /heal", healHandler)
			mux.Handle("GET /heal/results", resultsHandler)
			mux.Handle("POST /heal/results", resultsHandler)
		}
	} else {
		logger.Warn("healing SSE gateway not wired (no forge credentials configured); POST /heal will 404")
	}

	server := &http.Server{
		Addr:    cfg.HTTP().Address,
		Handler: mux,
	}

	notifyCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("address", cfg.HTTP().Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-notifyCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// registerReadinessHandler wires the GET /heal readiness payload. It
// coexists with POST /heal (the healing SSE gateway) and GET/POST
// /heal/results, both registered above whenever Components.SSE is wired,
// since ServeMux dispatches on method+path.
func registerReadinessHandler(mux *http.ServeMux) {
	mux.HandleFunc("GET /heal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
}
