// File: internal/network/dialer.go
package network

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// DialerConfig centralizes the TCP-level dial settings shared by every HTTP
// transport in the process (ForgeClient, GeminiClient's http.Client, etc).
type DialerConfig struct {
	Timeout      time.Duration
	KeepAlive    time.Duration
	ForceNoDelay bool
	TLSConfig    *tls.Config
}

// NewDialerConfig returns a DialerConfig with zero-value timing fields;
// callers (NewDefaultClientConfig) set the timing fields explicitly.
func NewDialerConfig() *DialerConfig {
	return &DialerConfig{}
}

// DialTCPContext dials addr over TCP using the given configuration, applying
// TCP_NODELAY when ForceNoDelay is set. TLS is handled by the caller's
// http.Transport, not here; cfg.TLSConfig is intentionally ignored for the
// raw TCP dial and only consulted by configureTLS.
func DialTCPContext(ctx context.Context, network, addr string, cfg *DialerConfig) (net.Conn, error) {
	dialer := &net.Dialer{}
	if cfg != nil {
		dialer.Timeout = cfg.Timeout
		dialer.KeepAlive = cfg.KeepAlive
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if cfg != nil && cfg.ForceNoDelay {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
	}

	return conn, nil
}
