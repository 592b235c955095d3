package vault

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-broker-sessions/adapters/gologger"
	"github.com/goliatone/go-broker-sessions/core"
)

// Vault stores broker credentials encrypted at rest. Plaintext fields only
// exist in memory for the duration of a Register or Reveal call.
type Vault struct {
	store       core.CredentialStore
	secrets     core.SecretProvider
	codec       core.CredentialCodec
	invalidator core.SessionInvalidator
	logger      core.Logger
	nowFn       func() time.Time
}

type Option func(*Vault)

func WithCredentialStore(store core.CredentialStore) Option {
	return func(v *Vault) {
		if store != nil {
			v.store = store
		}
	}
}

func WithSecretProvider(provider core.SecretProvider) Option {
	return func(v *Vault) {
		if provider != nil {
			v.secrets = provider
		}
	}
}

func WithCodec(codec core.CredentialCodec) Option {
	return func(v *Vault) {
		if codec != nil {
			v.codec = codec
		}
	}
}

// WithSessionInvalidator wires the session store so deleting credentials
// also tears down any live session for the key.
func WithSessionInvalidator(invalidator core.SessionInvalidator) Option {
	return func(v *Vault) {
		if invalidator != nil {
			v.invalidator = invalidator
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithClock(nowFn func() time.Time) Option {
	return func(v *Vault) {
		if nowFn != nil {
			v.nowFn = nowFn
		}
	}
}

func New(opts ...Option) (*Vault, error) {
	v := &Vault{
		store:  core.NewMemoryCredentialStore(),
		codec:  core.JSONCredentialCodec{},
		logger: gologger.Ensure("broker-vault"),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(v)
	}
	if v.secrets == nil {
		return nil, fmt.Errorf("vault: secret provider is required")
	}
	return v, nil
}

func (v *Vault) Register(ctx context.Context, userID string, provider string, fields core.CredentialFields) (core.AccountRef, error) {
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return core.AccountRef{}, err
	}

	payload, err := v.codec.Encode(fields)
	if err != nil {
		return core.AccountRef{}, err
	}
	encrypted, err := v.secrets.Encrypt(ctx, payload)
	if err != nil {
		return core.AccountRef{}, fmt.Errorf("vault: encrypt credentials for %q: %w", key.String(), err)
	}

	record := core.CredentialRecord{
		UserID:           key.UserID,
		Provider:         key.Provider,
		EncryptedPayload: encrypted,
		PayloadFormat:    v.codec.Format(),
		PayloadVersion:   v.codec.Version(),
	}
	record.EncryptionKeyID, record.EncryptionVersion = secretMetadata(v.secrets)

	saved, err := v.store.Save(ctx, record)
	if err != nil {
		return core.AccountRef{}, err
	}

	v.logger.Info("credentials registered",
		"provider", key.Provider,
		"user_id", key.UserID,
		"key_id", saved.EncryptionKeyID)

	return core.AccountRef{
		UserID:          saved.UserID,
		Provider:        saved.Provider,
		SavedAt:         saved.UpdatedAt,
		LastValidatedAt: saved.LastValidatedAt,
	}, nil
}

func (v *Vault) Reveal(ctx context.Context, userID string, provider string) (core.CredentialFields, error) {
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return nil, err
	}

	record, err := v.store.Get(ctx, key.UserID, key.Provider)
	if err != nil {
		return nil, err
	}
	payload, err := v.secrets.Decrypt(ctx, record.EncryptedPayload)
	if err != nil {
		return nil, fmt.Errorf("vault: decrypt credentials for %q: %w", key.String(), err)
	}
	return v.codec.Decode(payload)
}

func (v *Vault) Delete(ctx context.Context, userID string, provider string) error {
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}

	if err := v.store.Delete(ctx, key.UserID, key.Provider); err != nil {
		return err
	}
	if v.invalidator != nil {
		if err := v.invalidator.Invalidate(ctx, key); err != nil {
			v.logger.Error("session invalidation after credential delete failed",
				"provider", key.Provider,
				"user_id", key.UserID,
				"error", err)
		}
	}

	v.logger.Info("credentials deleted",
		"provider", key.Provider,
		"user_id", key.UserID)
	return nil
}

func (v *Vault) Touch(ctx context.Context, userID string, provider string) error {
	key := core.NewSessionKey(userID, provider)
	if err := key.Validate(); err != nil {
		return err
	}
	return v.store.Touch(ctx, key.UserID, key.Provider, v.nowFn())
}

func (v *Vault) ListAccounts(ctx context.Context) ([]core.AccountRef, error) {
	records, err := v.store.List(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]core.AccountRef, 0, len(records))
	for _, record := range records {
		accounts = append(accounts, core.AccountRef{
			UserID:          record.UserID,
			Provider:        record.Provider,
			SavedAt:         record.UpdatedAt,
			LastValidatedAt: record.LastValidatedAt,
		})
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Provider != accounts[j].Provider {
			return accounts[i].Provider < accounts[j].Provider
		}
		return accounts[i].UserID < accounts[j].UserID
	})
	return accounts, nil
}

func secretMetadata(provider core.SecretProvider) (string, int) {
	if described, ok := provider.(interface{ Metadata() (string, int) }); ok {
		return described.Metadata()
	}
	return "", 0
}

var _ core.CredentialVault = (*Vault)(nil)
