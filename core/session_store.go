package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrStaleRefresh reports that a refresh result arrived for a session epoch
// that no longer owns the key. The result is discarded, never an overwrite.
var ErrStaleRefresh = errors.New("core: stale refresh result discarded")

// SessionStore is the authoritative in-memory session table. All reads and
// writes go through one mutex; long-running provider calls never happen
// while it is held.
type SessionStore struct {
	mu      sync.Mutex
	entries map[SessionKey]*Session
	nowFn   func() time.Time
}

type SessionStoreOption func(*SessionStore)

func WithSessionClock(nowFn func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	store := &SessionStore{
		entries: make(map[SessionKey]*Session),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store
}

// BeginConnect claims the key for a connect attempt. A second connect while
// one is in flight fails with a busy error instead of queueing. Claiming
// bumps the epoch so in-flight refreshes for the previous session cannot
// commit anymore.
func (s *SessionStore) BeginConnect(_ context.Context, key SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.entries[key] = &Session{
			Key:       key,
			State:     SessionStateConnecting,
			Epoch:     1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return nil
	}
	if entry.State == SessionStateConnecting {
		return NewBusyError(key)
	}
	entry.State = SessionStateConnecting
	entry.Epoch++
	entry.Failures = 0
	entry.UpdatedAt = now
	return nil
}

// AbortConnect returns a key claimed by BeginConnect to disconnected.
func (s *SessionStore) AbortConnect(_ context.Context, key SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.State != SessionStateConnecting {
		return
	}
	delete(s.entries, key)
}

// Put installs a fresh grant and moves the session to connected.
func (s *SessionStore) Put(_ context.Context, key SessionKey, grant SessionGrant) (Session, error) {
	if err := key.Validate(); err != nil {
		return Session{}, err
	}
	if err := grant.Validate(); err != nil {
		return Session{}, err
	}
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &Session{Key: key, Epoch: 1, CreatedAt: now}
		s.entries[key] = entry
	}
	entry.State = SessionStateConnected
	entry.AccessToken = grant.AccessToken
	entry.ExpiresAt = grant.ExpiresAt
	entry.LastRefreshedAt = now
	entry.Failures = 0
	entry.UpdatedAt = now
	return *entry, nil
}

// CompleteConnect installs the grant for a key claimed by BeginConnect. A
// key dropped mid-connect stays dropped and the grant is discarded.
func (s *SessionStore) CompleteConnect(_ context.Context, key SessionKey, grant SessionGrant) (Session, error) {
	if err := grant.Validate(); err != nil {
		return Session{}, err
	}
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.State != SessionStateConnecting {
		return Session{}, NewSessionNotFoundError(key)
	}
	entry.State = SessionStateConnected
	entry.AccessToken = grant.AccessToken
	entry.ExpiresAt = grant.ExpiresAt
	entry.LastRefreshedAt = now
	entry.Failures = 0
	entry.UpdatedAt = now
	return *entry, nil
}

func (s *SessionStore) Get(_ context.Context, key SessionKey) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return SessionView{}, NewSessionNotFoundError(key)
	}
	return entry.View(), nil
}

// Snapshot returns the full session record, token included. Only the
// service refresh path uses it.
func (s *SessionStore) Snapshot(_ context.Context, key SessionKey) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return Session{}, NewSessionNotFoundError(key)
	}
	return *entry, nil
}

// CollectDue flips connected sessions whose refresh window opened to
// refresh_due and returns every session currently due. leadFor resolves the
// per-provider refresh lead.
func (s *SessionStore) CollectDue(_ context.Context, leadFor func(provider string) time.Duration) []SessionView {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]SessionView, 0)
	for _, entry := range s.entries {
		if entry.State == SessionStateConnected && !entry.ExpiresAt.IsZero() {
			lead := time.Duration(0)
			if leadFor != nil {
				lead = leadFor(entry.Key.Provider)
			}
			if !now.Before(entry.ExpiresAt.Add(-lead)) {
				entry.State = SessionStateRefreshDue
				entry.UpdatedAt = now
			}
		}
		if entry.State == SessionStateRefreshDue {
			due = append(due, entry.View())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].Key.String() < due[j].Key.String()
	})
	return due
}

// CommitRefresh installs a refreshed grant if the session still belongs to
// the given epoch. Results for dropped or reconnected sessions come back as
// ErrStaleRefresh and leave the table untouched.
func (s *SessionStore) CommitRefresh(_ context.Context, key SessionKey, epoch uint64, grant SessionGrant) (Session, error) {
	if err := grant.Validate(); err != nil {
		return Session{}, err
	}
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Epoch != epoch || !entry.State.Active() {
		return Session{}, ErrStaleRefresh
	}
	entry.State = SessionStateConnected
	entry.AccessToken = grant.AccessToken
	entry.ExpiresAt = grant.ExpiresAt
	entry.LastRefreshedAt = now
	entry.Failures = 0
	entry.UpdatedAt = now
	return *entry, nil
}

// FailRefresh records a failed refresh attempt and returns the cumulative
// failure count for the session.
func (s *SessionStore) FailRefresh(_ context.Context, key SessionKey, epoch uint64) (int, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.Epoch != epoch || !entry.State.Active() {
		return 0, ErrStaleRefresh
	}
	entry.State = SessionStateRefreshDue
	entry.Failures++
	entry.UpdatedAt = now
	return entry.Failures, nil
}

// Drop removes the session for a key. Reports whether one existed.
func (s *SessionStore) Drop(_ context.Context, key SessionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok
}

// Invalidate satisfies SessionInvalidator for vault deletion cascades.
func (s *SessionStore) Invalidate(ctx context.Context, key SessionKey) error {
	s.Drop(ctx, key)
	return nil
}

func (s *SessionStore) Keys(_ context.Context) []SessionKey {
	s.mu.Lock()
	keys := make([]SessionKey, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// CleanupExpired drops sessions whose expiry has passed and returns the
// dropped keys.
func (s *SessionStore) CleanupExpired(_ context.Context) []SessionKey {
	now := s.nowFn()

	s.mu.Lock()
	expired := make([]SessionKey, 0)
	for key, entry := range s.entries {
		if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
			expired = append(expired, key)
			delete(s.entries, key)
		}
	}
	s.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].String() < expired[j].String()
	})
	return expired
}

// Restore seeds the table from persisted snapshots. Sessions caught
// mid-connect are not restored; the connect attempt died with the process.
func (s *SessionStore) Restore(_ context.Context, sessions []Session) int {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, session := range sessions {
		if session.Key.Validate() != nil || !session.State.Active() {
			continue
		}
		if !session.ExpiresAt.IsZero() && now.After(session.ExpiresAt) {
			continue
		}
		if _, exists := s.entries[session.Key]; exists {
			continue
		}
		copied := session
		s.entries[session.Key] = &copied
		restored++
	}
	return restored
}

func (s *SessionStore) StateCounts(_ context.Context) map[SessionState]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[SessionState]int, len(sessionTransitions))
	for _, entry := range s.entries {
		counts[entry.State]++
	}
	return counts
}

var _ SessionInvalidator = (*SessionStore)(nil)
