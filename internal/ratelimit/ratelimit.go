// File: internal/ratelimit/ratelimit.go
// Description: a sliding-window limiter for the public API surface, keyed
// by client IP. Each key gets its own token-bucket limiter sized to allow
// MaxRequests over Window; idle keys are garbage-collected periodically so
// long-running processes don't accumulate one limiter per distinct visitor
// forever.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/codeguard-pro/codeguard/internal/config"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key sliding-window rate limiter. The zero value is not
// usable; construct with New.
type Limiter struct {
	cfg    config.RateLimitConfig
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry

	stop chan struct{}
}

// New wires a Limiter from configuration and starts its background GC loop.
// Callers must call Close when the limiter is no longer needed. When
// cfg.Enabled is false, Allow always returns true and no GC loop runs.
func New(cfg config.RateLimitConfig, logger *zap.Logger) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		logger:  logger.Named("ratelimit"),
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled {
		interval := cfg.GCInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go l.gcLoop(interval)
	}
	return l
}

// Close stops the background GC loop. Safe to call once.
func (l *Limiter) Close() {
	close(l.stop)
}

// Allow reports whether a request from key should proceed. key is typically
// the client IP.
func (l *Limiter) Allow(key string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.limiterFor(key).Allow()
}

// Reserve returns the duration the caller should wait before retrying, or
// zero if the request is allowed immediately.
func (l *Limiter) Reserve(key string) time.Duration {
	if !l.cfg.Enabled {
		return 0
	}
	r := l.limiterFor(key).Reserve()
	if !r.OK() {
		return 0
	}
	delay := r.Delay()
	if delay <= 0 {
		return 0
	}
	return delay
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	window := l.cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	max := l.cfg.MaxRequests
	if max <= 0 {
		max = 60
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		perSecond := rate.Limit(float64(max) / window.Seconds())
		e = &entry{limiter: rate.NewLimiter(perSecond, max)}
		l.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

func (l *Limiter) gcLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.gc(interval)
		}
	}
}

func (l *Limiter) gc(staleAfter time.Duration) {
	cutoff := time.Now().Add(-staleAfter)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// Middleware wraps next with the limiter, keying on the request's client IP
// (preferring X-Forwarded-For's first hop, falling back to RemoteAddr). On
// rejection it writes 429 with a Retry-After header.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if delay := l.Reserve(key); delay > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds()+1)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			l.logger.Debug("rate limited request", zap.String("client", key), zap.Duration("retry_after", delay))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}
