// Package limiter throttles repeated failed logins per (login, client) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and optional retry-after.
	Allow(ctx context.Context, login string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, login string, ipHash []byte) error
	// Failure records a failed attempt; may place a temporary block.
	Failure(ctx context.Context, login string, ipHash []byte) (bool, time.Duration, error)
}

// HashIP returns a stable hash for a client address; the port, if any, is ignored.
func HashIP(addr string) []byte {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	h := sha256.Sum256([]byte(addr))
	return h[:]
}

// NormalizeLogin lower-cases and trims a login email.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// Nop never blocks; used when throttling is disabled.
type Nop struct{}

// Allow always permits.
func (Nop) Allow(context.Context, string, []byte) (bool, time.Duration, error) { return true, 0, nil }

// Success does nothing.
func (Nop) Success(context.Context, string, []byte) error { return nil }

// Failure never blocks.
func (Nop) Failure(context.Context, string, []byte) (bool, time.Duration, error) { return false, 0, nil }
