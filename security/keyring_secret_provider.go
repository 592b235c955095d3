package security

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
)

// KeyRotationWindow gates when a retired key is still allowed to decrypt.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type keyringEntry struct {
	provider core.SecretProvider
	keyID    string
	version  int
	window   KeyRotationWindow
}

type KeyringOption func(*KeyringSecretProvider)

// WithRetiredKey registers an old key that may still decrypt existing
// records. The window bounds how long the key stays usable.
func WithRetiredKey(provider core.SecretProvider, window KeyRotationWindow) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if provider == nil {
			return
		}
		entry := keyringEntry{provider: provider, window: window}
		entry.keyID, entry.version = providerMetadata(provider)
		k.retired = append(k.retired, entry)
	}
}

func WithKeyringClock(nowFn func() time.Time) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if nowFn != nil {
			k.now = nowFn
		}
	}
}

// KeyringSecretProvider encrypts with a single active key and decrypts
// against the active key plus any retired keys, matched by the envelope's
// key id. It lets the vault rotate the credential key without a stop-the-
// world re-encryption of every record.
type KeyringSecretProvider struct {
	active  keyringEntry
	retired []keyringEntry
	now     func() time.Time

	mu sync.RWMutex
}

func NewKeyringSecretProvider(active core.SecretProvider, opts ...KeyringOption) (*KeyringSecretProvider, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active secret provider is required")
	}
	keyring := &KeyringSecretProvider{
		active: keyringEntry{provider: active},
		now:    func() time.Time { return time.Now().UTC() },
	}
	keyring.active.keyID, keyring.active.version = providerMetadata(active)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(keyring)
	}
	return keyring, nil
}

func (k *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	k.mu.RLock()
	active := k.active
	k.mu.RUnlock()
	return active.provider.Encrypt(ctx, plaintext)
}

func (k *KeyringSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}

	meta, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}

	k.mu.RLock()
	candidates := make([]keyringEntry, 0, len(k.retired)+1)
	candidates = append(candidates, k.active)
	candidates = append(candidates, k.retired...)
	now := k.now()
	k.mu.RUnlock()

	var lastErr error
	for _, entry := range candidates {
		if !entryMatchesEnvelope(entry, meta) {
			continue
		}
		if entry.keyID != "" && entry.keyID != k.activeKeyID() && !entry.window.Allows(now) {
			lastErr = fmt.Errorf("security: retired key %q is outside its rotation window", entry.keyID)
			continue
		}
		plaintext, err := entry.provider.Decrypt(ctx, ciphertext)
		if err == nil {
			return plaintext, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("security: no key in the ring matches key id %q", meta.KeyID)
	}
	return nil, lastErr
}

// Rotate promotes a new active key. The previous active key joins the
// retired set with the given window.
func (k *KeyringSecretProvider) Rotate(next core.SecretProvider, window KeyRotationWindow) error {
	if k == nil {
		return fmt.Errorf("security: secret provider is nil")
	}
	if next == nil {
		return fmt.Errorf("security: next secret provider is required")
	}

	entry := keyringEntry{provider: next}
	entry.keyID, entry.version = providerMetadata(next)

	k.mu.Lock()
	previous := k.active
	previous.window = window
	k.retired = append([]keyringEntry{previous}, k.retired...)
	k.active = entry
	k.mu.Unlock()
	return nil
}

func (k *KeyringSecretProvider) Metadata() (string, int) {
	if k == nil {
		return "", 0
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active.keyID, k.active.version
}

func (k *KeyringSecretProvider) activeKeyID() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.active.keyID
}

func entryMatchesEnvelope(entry keyringEntry, meta EnvelopeMetadata) bool {
	if meta.KeyID == "" {
		return true
	}
	if entry.keyID == "" {
		return true
	}
	if !strings.EqualFold(entry.keyID, meta.KeyID) {
		return false
	}
	if meta.Version > 0 && entry.version > 0 && meta.Version != entry.version {
		return false
	}
	return true
}

func providerMetadata(provider core.SecretProvider) (string, int) {
	if described, ok := provider.(interface{ Metadata() (string, int) }); ok {
		return described.Metadata()
	}
	return "", 0
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)
