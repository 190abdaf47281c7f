// File: internal/sse/handler.go
// Description: the HTTP boundary: POST /heal streams progress and a
// terminal result/error over SSE; GET and POST /heal/results serve the
// result store for clients that polled instead of staying connected.
package sse

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// HandleHeal implements POST /heal.
func (gw *Gateway) HandleHeal(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var req healRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed JSON body", http.StatusBadRequest)
		return
	}

	target, err := req.validate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id := uuid.NewString()
	ctx, cancel := context.WithTimeout(r.Context(), sessionTimeout(gw.deps.Cfg))
	defer cancel()

	emit := newStreamEmitter(w, gw.logger)
	result, err := gw.runHeal(ctx, id, target, req.TeamName, req.LeaderName, emit)
	if err != nil {
		if ctx.Err() != nil {
			result.FinalCIStatus = schemas.CIFailed
		}
		gw.logger.Error("heal session ended in error", zap.String("id", id), zap.Error(err))
		emit.emitError(err.Error(), result)
		gw.results.put(id, storedResult{Error: err.Error(), Result: &result})
		return
	}

	emit.emitResult(result)
	gw.results.put(id, storedResult{Result: &result})
}

// resultsRequest is the POST /heal/results JSON body.
type resultsRequest struct {
	ID string `json:"id"`
}

// HandleResults implements GET /heal/results?id=... and POST /heal/results
// with a JSON {"id": "..."} body.
func (gw *Gateway) HandleResults(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			var req resultsRequest
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, "malformed JSON body", http.StatusBadRequest)
				return
			}
			if req.ID != "" {
				id = req.ID
			}
		}
	}

	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	stored, ok := gw.results.get(id)
	if !ok {
		http.Error(w, "no result for that id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stored)
}
