package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultPendingAuthTTL = 5 * time.Minute

// PendingAuth tracks a redirect connect between phase one (login URL issued)
// and phase two (auth code delivered). The correlation token is single use.
type PendingAuth struct {
	Token       string
	Key         SessionKey
	RedirectURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type PendingAuthStore interface {
	Save(ctx context.Context, record PendingAuth) error
	Consume(ctx context.Context, token string) (PendingAuth, error)
}

type MemoryPendingAuthStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]PendingAuth
	nowFn   func() time.Time
}

func NewMemoryPendingAuthStore(ttl time.Duration) *MemoryPendingAuthStore {
	if ttl <= 0 {
		ttl = defaultPendingAuthTTL
	}
	return &MemoryPendingAuthStore{
		ttl:     ttl,
		entries: map[string]PendingAuth{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryPendingAuthStore) Save(_ context.Context, record PendingAuth) error {
	if s == nil {
		return fmt.Errorf("core: pending auth store is not configured")
	}
	token := strings.TrimSpace(record.Token)
	if token == "" {
		return fmt.Errorf("core: pending auth token is required")
	}
	if err := record.Key.Validate(); err != nil {
		return err
	}

	now := s.nowFn()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[token] = record
	s.mu.Unlock()

	return nil
}

func (s *MemoryPendingAuthStore) Consume(_ context.Context, token string) (PendingAuth, error) {
	if s == nil {
		return PendingAuth{}, fmt.Errorf("core: pending auth store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return PendingAuth{}, fmt.Errorf("core: pending auth token is required")
	}

	s.mu.Lock()
	record, ok := s.entries[token]
	if ok {
		delete(s.entries, token)
	}
	s.mu.Unlock()

	if !ok {
		return PendingAuth{}, fmt.Errorf("core: pending auth token not found")
	}
	if !record.ExpiresAt.IsZero() && s.nowFn().After(record.ExpiresAt) {
		return PendingAuth{}, fmt.Errorf("core: pending auth token expired")
	}

	return record, nil
}

func generateCorrelationToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate correlation token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ PendingAuthStore = (*MemoryPendingAuthStore)(nil)
