// File: internal/sse/store.go
// Description: the in-memory result store backing POST/GET /heal/results.
// Last-writer-wins on id, per the concurrency model's shared-resource note.
package sse

import (
	"sync"

	"github.com/codeguard-pro/codeguard/api/schemas"
)

// resultStore holds completed (or failed) heal outcomes keyed by id.
type resultStore struct {
	mu      sync.RWMutex
	results map[string]storedResult
}

// storedResult is what a poller gets back: the Result payload plus, on
// failure, the error message that accompanied the terminal SSE event.
type storedResult struct {
	ID     string          `json:"id"`
	Result *schemas.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func newResultStore() *resultStore {
	return &resultStore{results: make(map[string]storedResult)}
}

func (s *resultStore) put(id string, v storedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = id
	s.results[id] = v
}

func (s *resultStore) get(id string) (storedResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.results[id]
	return v, ok
}
