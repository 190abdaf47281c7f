// File: internal/sse/emitter.go
// Description: streamEmitter is the production schemas.ProgressEmitter: it
// turns each Emit call into a single "data: <json>\n\n" frame and flushes
// immediately, since a client watching the stream expects progress in real
// time, not buffered output at the end.
package sse

import (
	"net/http"
	"sync"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// resultEvent is the terminal "result" SSE frame.
type resultEvent struct {
	Stage   string         `json:"stage"`
	Results schemas.Result `json:"results"`
}

// errorEvent is the terminal "error" SSE frame. Results is populated with
// whatever partial outcome the session reached before failing.
type errorEvent struct {
	Stage   string         `json:"stage"`
	Message string         `json:"message"`
	Results schemas.Result `json:"results"`
}

// streamEmitter writes schemas.ProgressEvent values (and the two terminal
// event shapes, result/error) as SSE frames. A mutex guards the writer
// since the terminal event is written from a different call site than the
// Orchestrator's own Emit calls.
type streamEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *zap.Logger
	failed  bool
}

func newStreamEmitter(w http.ResponseWriter, logger *zap.Logger) *streamEmitter {
	flusher, _ := w.(http.Flusher)
	return &streamEmitter{w: w, flusher: flusher, logger: logger}
}

// Emit implements schemas.ProgressEmitter.
func (e *streamEmitter) Emit(event schemas.ProgressEvent) {
	e.write(event)
}

func (e *streamEmitter) emitResult(result schemas.Result) {
	e.write(resultEvent{Stage: "result", Results: result})
}

func (e *streamEmitter) emitError(message string, partial schemas.Result) {
	e.write(errorEvent{Stage: "error", Message: message, Results: partial})
}

func (e *streamEmitter) write(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failed {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("failed to marshal SSE event", zap.Error(err))
		return
	}
	if _, err := e.w.Write([]byte("data: ")); err != nil {
		e.failed = true
		return
	}
	if _, err := e.w.Write(body); err != nil {
		e.failed = true
		return
	}
	if _, err := e.w.Write([]byte("\n\n")); err != nil {
		e.failed = true
		return
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
}
