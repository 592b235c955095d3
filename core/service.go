package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultProviderCallTimeout = 15 * time.Second

type ConnectRequest struct {
	UserID   string
	Provider string
}

type ConnectResult struct {
	Status           SessionStatus
	Pending          bool
	RedirectURL      string
	CorrelationToken string
}

type CompleteAuthRequest struct {
	UserID           string
	Provider         string
	CorrelationToken string
	AuthCode         string
}

type RefreshRequest struct {
	Key SessionKey
}

type RefreshResult struct {
	Status      SessionStatus
	Attempts    int
	Reconnected bool
	Stale       bool
}

type RegisterCredentialsRequest struct {
	UserID   string
	Provider string
	Fields   CredentialFields
}

type HealthReport struct {
	ServiceName string
	Providers   []string
	Sessions    map[string]int
	Accounts    int
}

// StoreProvider exposes the persistence-backed stores a repository factory
// can build.
type StoreProvider interface {
	CredentialStore() CredentialStore
	SessionSnapshotStore() SessionSnapshotStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	registry          Registry
	vault             CredentialVault
	sessions          *SessionStore
	snapshotStore     SessionSnapshotStore
	pendingAuthStore  PendingAuthStore
	sessionLocker     SessionLocker
	backoffScheduler  RefreshBackoffScheduler
	persistenceClient any
	repositoryFactory any
	nowFn             func() time.Time
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("broker-sessions", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("broker-sessions"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewAdapterRegistry()
	}
	if builder.nowFn == nil {
		builder.nowFn = func() time.Time { return time.Now().UTC() }
	}
	if builder.sessions == nil {
		builder.sessions = NewSessionStore(WithSessionClock(builder.nowFn))
	}
	if builder.sessionLocker == nil {
		builder.sessionLocker = NewMemorySessionLocker()
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.pendingAuthStore == nil {
		builder.pendingAuthStore = NewMemoryPendingAuthStore(finalConfig.PendingAuthTTL)
	}
	if builder.snapshotStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.snapshotStore = storeProvider.SessionSnapshotStore()
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			builder.snapshotStore = storeProvider.SessionSnapshotStore()
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		registry:          builder.registry,
		vault:             builder.vault,
		sessions:          builder.sessions,
		snapshotStore:     builder.snapshotStore,
		pendingAuthStore:  builder.pendingAuthStore,
		sessionLocker:     builder.sessionLocker,
		backoffScheduler:  builder.backoffScheduler,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		nowFn:             builder.nowFn,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Sessions() *SessionStore {
	if s == nil {
		return nil
	}
	return s.sessions
}

// Connect establishes a session from stored credentials. Redirect providers
// come back pending with a login URL and a single-use correlation token;
// everyone else comes back connected or with a mapped failure.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	if s == nil {
		return ConnectResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	key := NewSessionKey(req.UserID, req.Provider)
	fields := map[string]any{
		"provider":    key.Provider,
		"user_id":     key.UserID,
		"session_key": key.String(),
	}

	result, err := s.connect(ctx, key)
	s.observeOperation(ctx, startedAt, "connect", err, fields)
	if err != nil {
		return ConnectResult{}, s.mapError(err)
	}
	return result, nil
}

func (s *Service) connect(ctx context.Context, key SessionKey) (ConnectResult, error) {
	if err := key.Validate(); err != nil {
		return ConnectResult{}, err
	}
	adapter, descriptor, err := s.resolveProvider(key.Provider)
	if err != nil {
		return ConnectResult{}, err
	}

	handle, err := s.sessionLocker.Acquire(ctx, key, defaultSessionLockTTL)
	if err != nil {
		return ConnectResult{}, NewBusyError(key)
	}
	defer func() { _ = handle.Unlock(ctx) }()

	if err := s.sessions.BeginConnect(ctx, key); err != nil {
		return ConnectResult{}, err
	}

	credentialFields, err := s.revealCredentials(ctx, key)
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return ConnectResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerCallTimeout())
	outcome, err := adapter.Connect(callCtx, credentialFields)
	cancel()
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return ConnectResult{}, err
	}

	if outcome.Pending {
		token, tokenErr := generateCorrelationToken()
		if tokenErr != nil {
			s.sessions.AbortConnect(ctx, key)
			return ConnectResult{}, tokenErr
		}
		record := PendingAuth{
			Token:       token,
			Key:         key,
			RedirectURL: outcome.RedirectURL,
			CreatedAt:   s.nowFn(),
		}
		if ttl := s.config.PendingAuthTTL; ttl > 0 {
			record.ExpiresAt = record.CreatedAt.Add(ttl)
		}
		if saveErr := s.pendingAuthStore.Save(ctx, record); saveErr != nil {
			s.sessions.AbortConnect(ctx, key)
			return ConnectResult{}, saveErr
		}
		// The interactive phase happens outside this process. The key goes
		// back to disconnected until the auth code arrives.
		s.sessions.AbortConnect(ctx, key)
		return ConnectResult{
			Status:           SessionStatus{Key: key, State: SessionStateDisconnected},
			Pending:          true,
			RedirectURL:      outcome.RedirectURL,
			CorrelationToken: token,
		}, nil
	}

	session, err := s.installGrant(ctx, key, outcome.Grant, descriptor)
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return ConnectResult{}, err
	}
	return ConnectResult{Status: s.statusFor(session.View())}, nil
}

// CompleteAuth finishes a redirect connect using the correlation token from
// the pending phase and the auth code delivered by the provider callback.
func (s *Service) CompleteAuth(ctx context.Context, req CompleteAuthRequest) (SessionStatus, error) {
	if s == nil {
		return SessionStatus{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	key := NewSessionKey(req.UserID, req.Provider)
	fields := map[string]any{
		"provider":    key.Provider,
		"user_id":     key.UserID,
		"session_key": key.String(),
	}

	status, err := s.completeAuth(ctx, key, req.CorrelationToken, req.AuthCode)
	s.observeOperation(ctx, startedAt, "complete_auth", err, fields)
	if err != nil {
		return SessionStatus{}, s.mapError(err)
	}
	return status, nil
}

func (s *Service) completeAuth(ctx context.Context, key SessionKey, correlationToken string, authCode string) (SessionStatus, error) {
	if err := key.Validate(); err != nil {
		return SessionStatus{}, err
	}
	if strings.TrimSpace(authCode) == "" {
		return SessionStatus{}, fmt.Errorf("core: auth code is required")
	}
	adapter, descriptor, err := s.resolveProvider(key.Provider)
	if err != nil {
		return SessionStatus{}, err
	}

	record, err := s.pendingAuthStore.Consume(ctx, correlationToken)
	if err != nil {
		return SessionStatus{}, NewAuthStateError(err.Error())
	}
	if record.Key != key {
		return SessionStatus{}, NewAuthStateError("core: correlation token does not match session key")
	}

	handle, err := s.sessionLocker.Acquire(ctx, key, defaultSessionLockTTL)
	if err != nil {
		return SessionStatus{}, NewBusyError(key)
	}
	defer func() { _ = handle.Unlock(ctx) }()

	if err := s.sessions.BeginConnect(ctx, key); err != nil {
		return SessionStatus{}, err
	}

	credentialFields, err := s.revealCredentials(ctx, key)
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return SessionStatus{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerCallTimeout())
	grant, err := adapter.CompleteRedirect(callCtx, credentialFields, strings.TrimSpace(authCode))
	cancel()
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return SessionStatus{}, err
	}

	session, err := s.installGrant(ctx, key, grant, descriptor)
	if err != nil {
		s.sessions.AbortConnect(ctx, key)
		return SessionStatus{}, err
	}
	return s.statusFor(session.View()), nil
}

// Status reports the session state for a key. Unknown keys answer as
// disconnected rather than failing.
func (s *Service) Status(ctx context.Context, key SessionKey) (SessionStatus, error) {
	if s == nil {
		return SessionStatus{}, fmt.Errorf("core: service is nil")
	}
	if err := key.Validate(); err != nil {
		return SessionStatus{}, s.mapError(err)
	}
	view, err := s.sessions.Get(ctx, key)
	if err != nil {
		return SessionStatus{Key: key, State: SessionStateDisconnected}, nil
	}
	return s.statusFor(view), nil
}

// Disconnect drops the session for a key. It is idempotent: disconnecting
// an absent session succeeds.
func (s *Service) Disconnect(ctx context.Context, key SessionKey) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	fields := map[string]any{
		"provider":    key.Provider,
		"user_id":     key.UserID,
		"session_key": key.String(),
	}

	err := s.disconnect(ctx, key)
	s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) disconnect(ctx context.Context, key SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	// Best effort on the key lock. A refresh can hold it across its whole
	// retry loop, and disconnect must not wait that out: dropping the entry
	// revokes epoch ownership, so the refresh result is discarded at commit.
	if handle, err := s.sessionLocker.Acquire(ctx, key, defaultSessionLockTTL); err == nil {
		defer func() { _ = handle.Unlock(ctx) }()
	}

	s.sessions.Drop(ctx, key)
	s.deleteSnapshot(ctx, key)
	return nil
}

// RefreshSession runs one refresh cycle for a key: retry with backoff on
// network errors, full reconnect through the vault when the provider cannot
// refresh in place. Every failed cycle counts toward the descriptor's
// consecutive-failure ceiling; reaching it drops the session. Results for
// epochs that lost ownership are discarded.
func (s *Service) RefreshSession(ctx context.Context, req RefreshRequest) (RefreshResult, error) {
	if s == nil {
		return RefreshResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	key := req.Key
	fields := map[string]any{
		"provider":    key.Provider,
		"user_id":     key.UserID,
		"session_key": key.String(),
	}

	result, err := s.refreshSession(ctx, key)
	fields["attempt"] = result.Attempts
	s.observeOperation(ctx, startedAt, "refresh", err, fields)
	if err != nil {
		return result, s.mapError(err)
	}
	return result, nil
}

func (s *Service) refreshSession(ctx context.Context, key SessionKey) (RefreshResult, error) {
	if err := key.Validate(); err != nil {
		return RefreshResult{}, err
	}
	adapter, descriptor, err := s.resolveProvider(key.Provider)
	if err != nil {
		return RefreshResult{}, err
	}

	handle, err := s.sessionLocker.Acquire(ctx, key, defaultSessionLockTTL)
	if err != nil {
		return RefreshResult{}, NewBusyError(key)
	}
	defer func() { _ = handle.Unlock(ctx) }()

	snap, err := s.sessions.Snapshot(ctx, key)
	if err != nil {
		return RefreshResult{}, err
	}
	if !snap.State.Active() {
		return RefreshResult{}, NewSessionNotFoundError(key)
	}
	epoch := snap.Epoch

	maxAttempts := s.config.Scheduler.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	result := RefreshResult{}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		grant, reconnected, refreshErr := s.refreshOnce(ctx, adapter, key, snap.AccessToken)
		if refreshErr == nil {
			session, commitErr := s.sessions.CommitRefresh(ctx, key, epoch, s.fillGrantExpiry(grant, descriptor))
			if errors.Is(commitErr, ErrStaleRefresh) {
				result.Stale = true
				return result, nil
			}
			if commitErr != nil {
				return result, commitErr
			}
			result.Reconnected = reconnected
			result.Status = s.statusFor(session.View())
			s.persistSnapshot(ctx, session)
			s.touchCredentials(ctx, key)
			return result, nil
		}
		lastErr = refreshErr

		failures, failErr := s.sessions.FailRefresh(ctx, key, epoch)
		if errors.Is(failErr, ErrStaleRefresh) {
			result.Stale = true
			return result, nil
		}

		if failures >= refreshFailureCeiling(descriptor) {
			s.sessions.Drop(ctx, key)
			s.deleteSnapshot(ctx, key)
			result.Status = SessionStatus{Key: key, State: SessionStateDisconnected}
			return result, refreshErr
		}
		if IsAuthError(refreshErr) {
			// Terminal for this cycle, never retried in place. The ceiling
			// decides when consecutive rejections take the session down.
			result.Status = SessionStatus{Key: key, State: SessionStateRefreshDue}
			return result, refreshErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := s.backoffScheduler.NextDelay(attempt)
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return result, waitErr
		}
		// A disconnect may have landed during the backoff window.
		current, snapErr := s.sessions.Snapshot(ctx, key)
		if snapErr != nil || current.Epoch != epoch || !current.State.Active() {
			result.Stale = true
			return result, nil
		}
		snap = current
	}

	return result, lastErr
}

// refreshOnce performs a single refresh attempt. Providers that report
// refresh as unsupported get a full reconnect from vault credentials; a
// reconnect that needs an interactive redirect counts as an auth failure
// because nobody is present to complete it.
func (s *Service) refreshOnce(
	ctx context.Context,
	adapter Adapter,
	key SessionKey,
	accessToken string,
) (SessionGrant, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.providerCallTimeout())
	grant, err := adapter.Refresh(callCtx, accessToken)
	cancel()
	if err == nil {
		return grant, false, nil
	}
	if !IsRefreshUnsupported(err) {
		return SessionGrant{}, false, err
	}

	credentialFields, revealErr := s.revealCredentials(ctx, key)
	if revealErr != nil {
		return SessionGrant{}, false, revealErr
	}

	callCtx, cancel = context.WithTimeout(ctx, s.providerCallTimeout())
	outcome, connectErr := adapter.Connect(callCtx, credentialFields)
	cancel()
	if connectErr != nil {
		return SessionGrant{}, false, connectErr
	}
	if outcome.Pending {
		return SessionGrant{}, false, NewAuthError(key.Provider, "core: reconnect requires an interactive login")
	}
	return outcome.Grant, true, nil
}

// DueSessions returns the keys whose refresh window is open, flipping them
// to refresh_due on the way. The scheduler calls this every tick.
func (s *Service) DueSessions(ctx context.Context) ([]SessionKey, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	views := s.sessions.CollectDue(ctx, func(provider string) time.Duration {
		if descriptor, ok := s.descriptorFor(provider); ok {
			return descriptor.RefreshLead
		}
		return 0
	})
	keys := make([]SessionKey, 0, len(views))
	for _, view := range views {
		keys = append(keys, view.Key)
	}
	return keys, nil
}

// CleanupExpiredSessions drops sessions that expired without a successful
// refresh and removes their snapshots.
func (s *Service) CleanupExpiredSessions(ctx context.Context) ([]SessionKey, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	dropped := s.sessions.CleanupExpired(ctx)
	for _, key := range dropped {
		s.deleteSnapshot(ctx, key)
	}
	s.observeOperation(ctx, startedAt, "cleanup_expired", nil, map[string]any{
		"dropped": len(dropped),
	})
	return dropped, nil
}

// RestoreSessions reloads persisted session snapshots into the in-memory
// store. Call it once at startup before the scheduler runs.
func (s *Service) RestoreSessions(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("core: service is nil")
	}
	if s.snapshotStore == nil {
		return 0, nil
	}
	snapshots, err := s.snapshotStore.List(ctx)
	if err != nil {
		return 0, s.mapError(err)
	}
	restored := s.sessions.Restore(ctx, snapshots)
	s.logInfo(ctx, "sessions restored from snapshots", map[string]any{
		"restored": restored,
		"total":    len(snapshots),
	})
	return restored, nil
}

// RegisterCredentials validates the provider's required fields and stores
// them encrypted in the vault.
func (s *Service) RegisterCredentials(ctx context.Context, req RegisterCredentialsRequest) (AccountRef, error) {
	if s == nil {
		return AccountRef{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	key := NewSessionKey(req.UserID, req.Provider)
	fields := map[string]any{
		"provider":          key.Provider,
		"user_id":           key.UserID,
		"credential_fields": req.Fields,
	}

	ref, err := s.registerCredentials(ctx, key, req.Fields)
	s.observeOperation(ctx, startedAt, "register_credentials", err, fields)
	if err != nil {
		return AccountRef{}, s.mapError(err)
	}
	return ref, nil
}

func (s *Service) registerCredentials(ctx context.Context, key SessionKey, credentialFields CredentialFields) (AccountRef, error) {
	if err := key.Validate(); err != nil {
		return AccountRef{}, err
	}
	_, descriptor, err := s.resolveProvider(key.Provider)
	if err != nil {
		return AccountRef{}, err
	}
	if err := credentialFields.Require(descriptor.RequiredFields...); err != nil {
		return AccountRef{}, err
	}
	if s.vault == nil {
		return AccountRef{}, s.dependencyError("core: credential vault is not configured")
	}
	return s.vault.Register(ctx, key.UserID, key.Provider, credentialFields)
}

// DeleteCredentials removes stored credentials and drops any live session
// for the key.
func (s *Service) DeleteCredentials(ctx context.Context, key SessionKey) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	fields := map[string]any{
		"provider":    key.Provider,
		"user_id":     key.UserID,
		"session_key": key.String(),
	}

	err := s.deleteCredentials(ctx, key)
	s.observeOperation(ctx, startedAt, "delete_credentials", err, fields)
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) deleteCredentials(ctx context.Context, key SessionKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if s.vault == nil {
		return s.dependencyError("core: credential vault is not configured")
	}
	if err := s.vault.Delete(ctx, key.UserID, key.Provider); err != nil {
		return err
	}
	s.sessions.Drop(ctx, key)
	s.deleteSnapshot(ctx, key)
	return nil
}

func (s *Service) ListAccounts(ctx context.Context) ([]AccountRef, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	if s.vault == nil {
		return nil, s.mapError(s.dependencyError("core: credential vault is not configured"))
	}
	accounts, err := s.vault.ListAccounts(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	return accounts, nil
}

func (s *Service) Health(ctx context.Context) (HealthReport, error) {
	if s == nil {
		return HealthReport{}, fmt.Errorf("core: service is nil")
	}
	report := HealthReport{
		ServiceName: s.config.ServiceName,
		Providers:   s.registry.Providers(),
		Sessions:    map[string]int{},
	}
	for state, count := range s.sessions.StateCounts(ctx) {
		report.Sessions[string(state)] = count
	}
	if s.vault != nil {
		if accounts, err := s.vault.ListAccounts(ctx); err == nil {
			report.Accounts = len(accounts)
		}
	}
	return report, nil
}

func (s *Service) resolveProvider(provider string) (Adapter, Descriptor, error) {
	adapter, ok := s.registry.Adapter(provider)
	if !ok {
		return nil, Descriptor{}, goerrors.New(
			fmt.Sprintf("core: provider not registered: %s", provider),
			goerrors.CategoryNotFound,
		).WithTextCode(BrokerErrorProviderNotFound)
	}
	descriptor, ok := s.descriptorFor(provider)
	if !ok {
		return nil, Descriptor{}, goerrors.New(
			fmt.Sprintf("core: provider not registered: %s", provider),
			goerrors.CategoryNotFound,
		).WithTextCode(BrokerErrorProviderNotFound)
	}
	return adapter, descriptor, nil
}

// descriptorFor merges configured overrides on top of the registered
// descriptor.
func (s *Service) descriptorFor(provider string) (Descriptor, bool) {
	descriptor, ok := s.registry.Descriptor(provider)
	if !ok {
		return Descriptor{}, false
	}
	if override, found := s.config.ProviderOverride(provider); found {
		if override.SessionLifetime > 0 {
			descriptor.SessionLifetime = override.SessionLifetime
		}
		if override.RefreshLead > 0 {
			descriptor.RefreshLead = override.RefreshLead
		}
		if override.MaxRefreshFailures > 0 {
			descriptor.MaxRefreshFailures = override.MaxRefreshFailures
		}
	}
	return descriptor, true
}

func (s *Service) revealCredentials(ctx context.Context, key SessionKey) (CredentialFields, error) {
	if s.vault == nil {
		return nil, s.dependencyError("core: credential vault is not configured")
	}
	return s.vault.Reveal(ctx, key.UserID, key.Provider)
}

func (s *Service) installGrant(ctx context.Context, key SessionKey, grant SessionGrant, descriptor Descriptor) (Session, error) {
	session, err := s.sessions.CompleteConnect(ctx, key, s.fillGrantExpiry(grant, descriptor))
	if err != nil {
		return Session{}, err
	}
	s.persistSnapshot(ctx, session)
	s.touchCredentials(ctx, key)
	return session, nil
}

func refreshFailureCeiling(descriptor Descriptor) int {
	if descriptor.MaxRefreshFailures > 0 {
		return descriptor.MaxRefreshFailures
	}
	return 1
}

func (s *Service) fillGrantExpiry(grant SessionGrant, descriptor Descriptor) SessionGrant {
	if grant.ExpiresAt.IsZero() && descriptor.SessionLifetime > 0 {
		grant.ExpiresAt = s.nowFn().Add(descriptor.SessionLifetime)
	}
	return grant
}

func (s *Service) statusFor(view SessionView) SessionStatus {
	status := SessionStatus{
		Key:   view.Key,
		State: view.State,
	}
	now := s.nowFn()
	if !view.ExpiresAt.IsZero() {
		expiresAt := view.ExpiresAt
		status.ExpiresAt = &expiresAt
		if remaining := expiresAt.Sub(now); remaining > 0 {
			status.ExpiresInSeconds = int64(remaining.Seconds())
		}
	}
	status.Connected = view.State.Active() &&
		(view.ExpiresAt.IsZero() || now.Before(view.ExpiresAt))
	return status
}

func (s *Service) persistSnapshot(ctx context.Context, session Session) {
	if s.snapshotStore == nil {
		return
	}
	if err := s.snapshotStore.Save(ctx, session); err != nil {
		s.logError(ctx, "session snapshot save failed", map[string]any{
			"session_key": session.Key.String(),
			"error":       err.Error(),
		})
	}
}

func (s *Service) deleteSnapshot(ctx context.Context, key SessionKey) {
	if s.snapshotStore == nil {
		return
	}
	if err := s.snapshotStore.Delete(ctx, key); err != nil {
		s.logError(ctx, "session snapshot delete failed", map[string]any{
			"session_key": key.String(),
			"error":       err.Error(),
		})
	}
}

func (s *Service) touchCredentials(ctx context.Context, key SessionKey) {
	if s.vault == nil {
		return
	}
	if err := s.vault.Touch(ctx, key.UserID, key.Provider); err != nil {
		s.logError(ctx, "credential touch failed", map[string]any{
			"session_key": key.String(),
			"error":       err.Error(),
		})
	}
}

func (s *Service) providerCallTimeout() time.Duration {
	if s.config.Scheduler.CallTimeout > 0 {
		return s.config.Scheduler.CallTimeout
	}
	return defaultProviderCallTimeout
}

func (s *Service) dependencyError(message string) error {
	return s.errorFactory(message, goerrors.CategoryInternal).
		WithTextCode(BrokerErrorInternal)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
