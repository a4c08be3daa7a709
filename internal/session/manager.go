// Package session keeps the service's upstream bearer token valid across
// requests without re-authenticating on each one.
package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kerosindigital/bsky.link/internal/bsky"
	"github.com/kerosindigital/bsky.link/internal/logging"
	"github.com/kerosindigital/bsky.link/internal/metrics"
)

// Exchanger performs the two session procedures.
type Exchanger interface {
	CreateSession(ctx context.Context, identifier, password string) (bsky.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (bsky.Session, error)
}

// Manager owns the access/refresh token pair. The zero expiry means the
// first EnsureFresh always performs an exchange.
type Manager struct {
	client     Exchanger
	identifier string
	password   string
	lifetime   time.Duration
	timeout    time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	access    string
	refresh   string
	expiresAt time.Time

	flight singleflight.Group
}

// NewManager creates a manager; lifetime is how long a token pair is
// trusted after an exchange and should sit well below the upstream expiry.
func NewManager(client Exchanger, identifier, password string, lifetime time.Duration) *Manager {
	return &Manager{
		client:     client,
		identifier: identifier,
		password:   password,
		lifetime:   lifetime,
		timeout:    15 * time.Second,
		now:        time.Now,
	}
}

// Token returns the current access token for Authorization headers.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access
}

func (m *Manager) ExpiresAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expiresAt
}

// Expired reports now > expiresAt.
func (m *Manager) Expired() bool {
	return m.now().After(m.ExpiresAt())
}

// Acquire signs in with the configured identifier and password. On failure
// the held state is left untouched.
func (m *Manager) Acquire(ctx context.Context) error {
	s, err := m.client.CreateSession(ctx, m.identifier, m.password)
	metrics.IncSessionExchange("acquire", err)
	if err != nil {
		logging.Error("session_acquire_failed", map[string]any{"error": err.Error()})
		return err
	}
	m.store(s)
	logging.Info("session_acquired", map[string]any{"handle": s.Handle, "expires_at": m.ExpiresAt()})
	return nil
}

// Refresh exchanges the refresh token for a new pair. Without a refresh
// token, or when the upstream rejects it, it signs in again instead.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.RLock()
	rt := m.refresh
	m.mu.RUnlock()
	if rt == "" {
		return m.Acquire(ctx)
	}
	s, err := m.client.RefreshSession(ctx, rt)
	metrics.IncSessionExchange("refresh", err)
	if err != nil {
		logging.Error("session_refresh_failed", map[string]any{"error": err.Error()})
		if bsky.IsTokenRejected(err) {
			return m.Acquire(ctx)
		}
		return err
	}
	m.store(s)
	logging.Debug("session_refreshed", map[string]any{"expires_at": m.ExpiresAt()})
	return nil
}

// EnsureFresh refreshes the pair when it has expired and waits for the
// outcome. Concurrent callers share a single in-flight exchange. The
// exchange is detached from ctx so an abandoned caller cannot cut it short
// for the others; ctx only bounds how long this caller waits.
func (m *Manager) EnsureFresh(ctx context.Context) error {
	if !m.Expired() {
		return nil
	}
	ch := m.flight.DoChan("refresh", func() (any, error) {
		// a flight that finished between our check and DoChan already did the work
		if !m.Expired() {
			return nil, nil
		}
		xctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		return nil, m.Refresh(xctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) store(s bsky.Session) {
	m.mu.Lock()
	m.access = s.AccessJwt
	m.refresh = s.RefreshJwt
	m.expiresAt = m.now().Add(m.lifetime)
	m.mu.Unlock()
}
