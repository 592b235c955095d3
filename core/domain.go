package core

import (
	"fmt"
	"strings"
	"time"
)

type AuthKind string

const (
	// AuthKindRedirect providers hand the user a login URL and complete the
	// session later through an auth code callback.
	AuthKindRedirect AuthKind = "redirect_oauth"
	// AuthKindDirectToken providers take a long-lived token and validate it
	// with a probe call.
	AuthKindDirectToken AuthKind = "direct_token"
	// AuthKindFormOTC providers log in with stored fields plus a generated
	// one-time code, so they can reconnect unattended.
	AuthKindFormOTC AuthKind = "form_otc"
)

func (k AuthKind) Valid() bool {
	switch k {
	case AuthKindRedirect, AuthKindDirectToken, AuthKindFormOTC:
		return true
	default:
		return false
	}
}

// SessionKey identifies a broker session by user and provider. One user can
// hold at most one live session per provider.
type SessionKey struct {
	UserID   string
	Provider string
}

func NewSessionKey(userID string, provider string) SessionKey {
	return SessionKey{
		UserID:   strings.TrimSpace(userID),
		Provider: strings.ToLower(strings.TrimSpace(provider)),
	}
}

func (k SessionKey) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return fmt.Errorf("core: user id is required")
	}
	if strings.TrimSpace(k.Provider) == "" {
		return fmt.Errorf("core: provider is required")
	}
	return nil
}

func (k SessionKey) String() string {
	return k.Provider + ":" + k.UserID
}

type SessionState string

const (
	SessionStateDisconnected SessionState = "disconnected"
	SessionStateConnecting   SessionState = "connecting"
	SessionStateConnected    SessionState = "connected"
	SessionStateRefreshDue   SessionState = "refresh_due"
)

var sessionTransitions = map[SessionState]map[SessionState]struct{}{
	SessionStateDisconnected: {
		SessionStateConnecting: {},
	},
	SessionStateConnecting: {
		SessionStateConnected:    {},
		SessionStateDisconnected: {},
	},
	SessionStateConnected: {
		SessionStateRefreshDue:   {},
		SessionStateConnecting:   {},
		SessionStateDisconnected: {},
	},
	SessionStateRefreshDue: {
		SessionStateConnected:    {},
		SessionStateConnecting:   {},
		SessionStateDisconnected: {},
	},
}

func (s SessionState) CanTransitionTo(next SessionState) bool {
	allowed, ok := sessionTransitions[s]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

func (s SessionState) Active() bool {
	return s == SessionStateConnected || s == SessionStateRefreshDue
}

// Session is the authoritative in-memory record for one broker login.
// Epoch increments whenever ownership of the key changes, so background
// refresh results committed against an older epoch are discarded.
type Session struct {
	Key             SessionKey
	State           SessionState
	AccessToken     string
	ExpiresAt       time.Time
	LastRefreshedAt time.Time
	Failures        int
	Epoch           uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SessionView is the token-free projection handed to callers.
type SessionView struct {
	Key             SessionKey
	State           SessionState
	ExpiresAt       time.Time
	LastRefreshedAt time.Time
	Failures        int
}

func (s Session) View() SessionView {
	return SessionView{
		Key:             s.Key,
		State:           s.State,
		ExpiresAt:       s.ExpiresAt,
		LastRefreshedAt: s.LastRefreshedAt,
		Failures:        s.Failures,
	}
}

type SessionStatus struct {
	Key              SessionKey
	State            SessionState
	Connected        bool
	ExpiresAt        *time.Time
	ExpiresInSeconds int64
}

// Descriptor carries the per-provider lifecycle policy. Descriptors are
// registered once at startup alongside the adapter and never mutated.
type Descriptor struct {
	Provider           string
	Kind               AuthKind
	RequiredFields     []string
	SessionLifetime    time.Duration
	RefreshLead        time.Duration
	MaxRefreshFailures int
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Provider) == "" {
		return fmt.Errorf("core: descriptor provider is required")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("core: descriptor auth kind %q is not supported", d.Kind)
	}
	if d.SessionLifetime <= 0 {
		return fmt.Errorf("core: descriptor session lifetime must be positive")
	}
	if d.RefreshLead < 0 {
		return fmt.Errorf("core: descriptor refresh lead must not be negative")
	}
	if d.RefreshLead >= d.SessionLifetime {
		return fmt.Errorf("core: descriptor refresh lead must be shorter than the session lifetime")
	}
	if d.MaxRefreshFailures < 1 {
		return fmt.Errorf("core: descriptor max refresh failures must be at least 1")
	}
	return nil
}

// CredentialFields holds the provider-specific secrets a user registers,
// for example api_key/api_secret or client_id/access_token.
type CredentialFields map[string]string

func (f CredentialFields) Clone() CredentialFields {
	if len(f) == 0 {
		return CredentialFields{}
	}
	out := make(CredentialFields, len(f))
	for key, value := range f {
		out[key] = value
	}
	return out
}

func (f CredentialFields) Get(name string) string {
	return strings.TrimSpace(f[name])
}

func (f CredentialFields) Require(names ...string) error {
	for _, name := range names {
		if f.Get(name) == "" {
			return fmt.Errorf("core: credential field %q is required", name)
		}
	}
	return nil
}

// CredentialRecord is the encrypted at-rest form of CredentialFields.
// Plaintext never leaves the vault.
type CredentialRecord struct {
	UserID            string
	Provider          string
	EncryptedPayload  []byte
	PayloadFormat     string
	PayloadVersion    int
	EncryptionKeyID   string
	EncryptionVersion int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastValidatedAt   *time.Time
}

// AccountRef lists a saved credential without exposing any secret material.
type AccountRef struct {
	UserID          string
	Provider        string
	SavedAt         time.Time
	LastValidatedAt *time.Time
}

// SessionGrant is what an adapter returns after a successful login or
// refresh. A zero ExpiresAt means the descriptor lifetime applies.
type SessionGrant struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (g SessionGrant) Validate() error {
	if strings.TrimSpace(g.AccessToken) == "" {
		return fmt.Errorf("core: session grant access token is required")
	}
	return nil
}

// ConnectOutcome is the result of an adapter connect attempt. Redirect
// providers return Pending with a login URL; everyone else returns a grant.
type ConnectOutcome struct {
	Pending     bool
	RedirectURL string
	Grant       SessionGrant
}
