// Package brokersessions manages broker credentials and trading session
// lifecycles: an encrypted credential vault, per-provider auth adapters, an
// in-memory session table with persistent snapshots, and a background
// refresh scheduler.
package brokersessions

import "github.com/goliatone/go-broker-sessions/core"

type Config = core.Config

type ProviderConfig = core.ProviderConfig
type SchedulerConfig = core.SchedulerConfig

type Option = core.Option

type Service = core.Service

type Adapter = core.Adapter
type Descriptor = core.Descriptor
type Registry = core.Registry
type CredentialFields = core.CredentialFields
type CredentialVault = core.CredentialVault
type CredentialStore = core.CredentialStore
type SessionSnapshotStore = core.SessionSnapshotStore
type SessionKey = core.SessionKey
type SessionStatus = core.SessionStatus
type AccountRef = core.AccountRef
type HealthReport = core.HealthReport
type RefreshBackoffScheduler = core.RefreshBackoffScheduler

type ConnectRequest = core.ConnectRequest
type ConnectResult = core.ConnectResult
type CompleteAuthRequest = core.CompleteAuthRequest
type RefreshRequest = core.RefreshRequest
type RefreshResult = core.RefreshResult
type RegisterCredentialsRequest = core.RegisterCredentialsRequest

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithRegistry                = core.WithRegistry
	WithVault                   = core.WithVault
	WithSessionStore            = core.WithSessionStore
	WithSessionSnapshotStore    = core.WithSessionSnapshotStore
	WithPendingAuthStore        = core.WithPendingAuthStore
	WithSessionLocker           = core.WithSessionLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithClock                   = core.WithClock

	NewSessionKey      = core.NewSessionKey
	NewAdapterRegistry = core.NewAdapterRegistry
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
