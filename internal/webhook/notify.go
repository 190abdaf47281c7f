// File: internal/webhook/notify.go
// Description: an optional fire-and-forget Slack summary, posted when
// SLACK_WEBHOOK_URL is configured. No example in the corpus wires a Slack
// client library for anything, and the payload is a single-field JSON POST,
// so this stays on net/http + encoding/json rather than pulling in a
// dependency to do what a five-line helper already does.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// SlackNotifier posts a short text summary to a Slack incoming webhook URL.
// A zero-value SlackNotifier with an empty URL is inert.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     *zap.Logger
}

// NewSlackNotifier wires a SlackNotifier. Returns nil if webhookURL is
// empty, so callers can pass the result straight into New's notifier
// parameter without an extra nil check at the call site.
func NewSlackNotifier(webhookURL string, logger *zap.Logger) *SlackNotifier {
	if webhookURL == "" {
		return nil
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("webhook.slack"),
	}
}

// Notify posts text to the configured webhook. Failures are logged, never
// propagated: a missed Slack summary must not fail inline analysis.
func (s *SlackNotifier) Notify(ctx context.Context, text string) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		s.logger.Warn("failed to marshal slack payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Warn("failed to build slack request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("failed to post slack notification", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.logger.Warn("slack notification rejected", zap.Int("status", resp.StatusCode))
	}
}
