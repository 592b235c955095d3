package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Adapter is the single surface every broker integration implements.
// Connect and CompleteRedirect receive the decrypted credential fields;
// Refresh only ever sees the current access token.
type Adapter interface {
	Provider() string
	Kind() AuthKind
	Connect(ctx context.Context, fields CredentialFields) (ConnectOutcome, error)
	CompleteRedirect(ctx context.Context, fields CredentialFields, authCode string) (SessionGrant, error)
	Refresh(ctx context.Context, accessToken string) (SessionGrant, error)
}

type Registry interface {
	Register(adapter Adapter, descriptor Descriptor) error
	Adapter(provider string) (Adapter, bool)
	Descriptor(provider string) (Descriptor, bool)
	Providers() []string
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// CredentialStore persists encrypted credential records keyed by
// user and provider. Save acts as an upsert.
type CredentialStore interface {
	Save(ctx context.Context, record CredentialRecord) (CredentialRecord, error)
	Get(ctx context.Context, userID string, provider string) (CredentialRecord, error)
	Delete(ctx context.Context, userID string, provider string) error
	Touch(ctx context.Context, userID string, provider string, at time.Time) error
	List(ctx context.Context) ([]CredentialRecord, error)
}

// CredentialVault is the encrypting facade over a CredentialStore.
type CredentialVault interface {
	Register(ctx context.Context, userID string, provider string, fields CredentialFields) (AccountRef, error)
	Reveal(ctx context.Context, userID string, provider string) (CredentialFields, error)
	Delete(ctx context.Context, userID string, provider string) error
	Touch(ctx context.Context, userID string, provider string) error
	ListAccounts(ctx context.Context) ([]AccountRef, error)
}

// SessionInvalidator drops any live session for a key. The vault uses it to
// cascade credential deletion into the session store.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, key SessionKey) error
}

// SessionSnapshotStore persists session records so sessions survive a
// process restart. The in-memory store stays authoritative; snapshots are
// write-through and best effort.
type SessionSnapshotStore interface {
	Save(ctx context.Context, session Session) error
	Delete(ctx context.Context, key SessionKey) error
	List(ctx context.Context) ([]Session, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// SessionLocker serializes mutating work per session key. The refresh
// scheduler and the connect path both acquire it, so a user-triggered
// connect never races a background refresh for the same key.
type SessionLocker interface {
	Acquire(ctx context.Context, key SessionKey, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TaskExecutionMessage struct {
	TaskID         string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type TaskNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type TaskEnqueuer interface {
	Enqueue(ctx context.Context, msg *TaskExecutionMessage) error
}

type TaskDelivery interface {
	Message() *TaskExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts TaskNackOptions) error
}

type TaskDequeuer interface {
	Dequeue(ctx context.Context) (TaskDelivery, error)
}

type TaskWorkerHook interface {
	OnStart(ctx context.Context, event TaskWorkerEvent)
	OnSuccess(ctx context.Context, event TaskWorkerEvent)
	OnFailure(ctx context.Context, event TaskWorkerEvent)
	OnRetry(ctx context.Context, event TaskWorkerEvent)
}

type TaskWorkerEvent struct {
	Message   *TaskExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
