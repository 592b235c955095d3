package core

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubAdapter struct {
	provider         string
	kind             AuthKind
	connectFn        func(ctx context.Context, fields CredentialFields) (ConnectOutcome, error)
	completeFn       func(ctx context.Context, fields CredentialFields, authCode string) (SessionGrant, error)
	refreshFn        func(ctx context.Context, accessToken string) (SessionGrant, error)
	mu               sync.Mutex
	connectCalls     int
	completeCalls    int
	refreshCalls     int
	lastRefreshToken string
}

func (a *stubAdapter) Provider() string {
	return a.provider
}

func (a *stubAdapter) Kind() AuthKind {
	if a.kind == "" {
		return AuthKindDirectToken
	}
	return a.kind
}

func (a *stubAdapter) Connect(ctx context.Context, fields CredentialFields) (ConnectOutcome, error) {
	a.mu.Lock()
	a.connectCalls++
	a.mu.Unlock()
	if a.connectFn == nil {
		return ConnectOutcome{Grant: SessionGrant{AccessToken: "token-1"}}, nil
	}
	return a.connectFn(ctx, fields)
}

func (a *stubAdapter) CompleteRedirect(ctx context.Context, fields CredentialFields, authCode string) (SessionGrant, error) {
	a.mu.Lock()
	a.completeCalls++
	a.mu.Unlock()
	if a.completeFn == nil {
		return SessionGrant{AccessToken: "token-redirect"}, nil
	}
	return a.completeFn(ctx, fields, authCode)
}

func (a *stubAdapter) Refresh(ctx context.Context, accessToken string) (SessionGrant, error) {
	a.mu.Lock()
	a.refreshCalls++
	a.lastRefreshToken = accessToken
	a.mu.Unlock()
	if a.refreshFn == nil {
		return SessionGrant{AccessToken: "token-refreshed"}, nil
	}
	return a.refreshFn(ctx, accessToken)
}

func (a *stubAdapter) counts() (int, int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectCalls, a.completeCalls, a.refreshCalls
}

func testDescriptor(provider string, kind AuthKind) Descriptor {
	return Descriptor{
		Provider:           provider,
		Kind:               kind,
		RequiredFields:     []string{"api_key"},
		SessionLifetime:    8 * time.Hour,
		RefreshLead:        30 * time.Minute,
		MaxRefreshFailures: 3,
	}
}

type stubVault struct {
	mu       sync.Mutex
	fields   map[string]CredentialFields
	touched  map[string]int
	deleted  map[string]int
	savedAt  time.Time
	touchErr error
}

func newStubVault() *stubVault {
	return &stubVault{
		fields:  map[string]CredentialFields{},
		touched: map[string]int{},
		deleted: map[string]int{},
		savedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (v *stubVault) put(userID string, provider string, fields CredentialFields) {
	v.mu.Lock()
	v.fields[NewSessionKey(userID, provider).String()] = fields.Clone()
	v.mu.Unlock()
}

func (v *stubVault) Register(_ context.Context, userID string, provider string, fields CredentialFields) (AccountRef, error) {
	v.put(userID, provider, fields)
	key := NewSessionKey(userID, provider)
	return AccountRef{UserID: key.UserID, Provider: key.Provider, SavedAt: v.savedAt}, nil
}

func (v *stubVault) Reveal(_ context.Context, userID string, provider string) (CredentialFields, error) {
	key := NewSessionKey(userID, provider)
	v.mu.Lock()
	fields, ok := v.fields[key.String()]
	v.mu.Unlock()
	if !ok {
		return nil, NewCredentialsNotFoundError(key)
	}
	return fields.Clone(), nil
}

func (v *stubVault) Delete(_ context.Context, userID string, provider string) error {
	key := NewSessionKey(userID, provider)
	v.mu.Lock()
	delete(v.fields, key.String())
	v.deleted[key.String()]++
	v.mu.Unlock()
	return nil
}

func (v *stubVault) Touch(_ context.Context, userID string, provider string) error {
	if v.touchErr != nil {
		return v.touchErr
	}
	key := NewSessionKey(userID, provider)
	v.mu.Lock()
	v.touched[key.String()]++
	v.mu.Unlock()
	return nil
}

func (v *stubVault) ListAccounts(_ context.Context) ([]AccountRef, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	accounts := make([]AccountRef, 0, len(v.fields))
	for stored := range v.fields {
		key := stored
		accounts = append(accounts, AccountRef{UserID: key, SavedAt: v.savedAt})
	}
	return accounts, nil
}

type recordingSnapshotStore struct {
	mu      sync.Mutex
	saved   map[SessionKey]Session
	deletes []SessionKey
	listed  []Session
	saveErr error
}

func newRecordingSnapshotStore() *recordingSnapshotStore {
	return &recordingSnapshotStore{saved: map[SessionKey]Session{}}
}

func (s *recordingSnapshotStore) Save(_ context.Context, session Session) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	s.saved[session.Key] = session
	s.mu.Unlock()
	return nil
}

func (s *recordingSnapshotStore) Delete(_ context.Context, key SessionKey) error {
	s.mu.Lock()
	delete(s.saved, key)
	s.deletes = append(s.deletes, key)
	s.mu.Unlock()
	return nil
}

func (s *recordingSnapshotStore) List(_ context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Session(nil), s.listed...), nil
}

func newTestService(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, clock *fakeClock, adapter Adapter, descriptor Descriptor, vault CredentialVault, extra ...Option) *Service {
	t.Helper()

	registry := NewAdapterRegistry()
	if err := registry.Register(adapter, descriptor); err != nil {
		t.Fatalf("register adapter: %v", err)
	}

	options := []Option{
		WithRegistry(registry),
		WithVault(vault),
		WithRefreshBackoffScheduler(ExponentialBackoffScheduler{Initial: time.Nanosecond, Max: time.Nanosecond}),
	}
	if clock != nil {
		options = append(options, WithClock(clock.Now))
		options = append(options, WithSessionStore(NewSessionStore(WithSessionClock(clock.Now))))
	}
	options = append(options, extra...)

	svc, err := NewService(Config{}, options...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}
