package core

import (
	"testing"
	"time"
)

func TestSessionKeyNormalization(t *testing.T) {
	key := NewSessionKey("  user-1 ", " KITE ")
	if key.UserID != "user-1" {
		t.Fatalf("expected trimmed user id, got %q", key.UserID)
	}
	if key.Provider != "kite" {
		t.Fatalf("expected lowercased provider, got %q", key.Provider)
	}
	if key.String() != "kite:user-1" {
		t.Fatalf("unexpected key string %q", key.String())
	}
	if err := key.Validate(); err != nil {
		t.Fatalf("validate key: %v", err)
	}
	if err := (SessionKey{Provider: "kite"}).Validate(); err == nil {
		t.Fatal("expected missing user id to fail validation")
	}
}

func TestSessionStateTransitions(t *testing.T) {
	allowed := []struct {
		from SessionState
		to   SessionState
	}{
		{SessionStateDisconnected, SessionStateConnecting},
		{SessionStateConnecting, SessionStateConnected},
		{SessionStateConnecting, SessionStateDisconnected},
		{SessionStateConnected, SessionStateRefreshDue},
		{SessionStateConnected, SessionStateDisconnected},
		{SessionStateRefreshDue, SessionStateConnected},
		{SessionStateRefreshDue, SessionStateDisconnected},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from SessionState
		to   SessionState
	}{
		{SessionStateDisconnected, SessionStateConnected},
		{SessionStateDisconnected, SessionStateRefreshDue},
		{SessionStateConnecting, SessionStateRefreshDue},
	}
	for _, tc := range denied {
		if tc.from.CanTransitionTo(tc.to) {
			t.Fatalf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}
}

func TestDescriptorValidate(t *testing.T) {
	descriptor := testDescriptor("kite", AuthKindRedirect)
	if err := descriptor.Validate(); err != nil {
		t.Fatalf("validate descriptor: %v", err)
	}

	bad := descriptor
	bad.Kind = AuthKind("magic")
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown auth kind to fail")
	}

	bad = descriptor
	bad.RefreshLead = descriptor.SessionLifetime
	if err := bad.Validate(); err == nil {
		t.Fatal("expected refresh lead >= lifetime to fail")
	}

	bad = descriptor
	bad.MaxRefreshFailures = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("expected zero max refresh failures to fail")
	}
}

func TestCredentialFieldsRequire(t *testing.T) {
	fields := CredentialFields{"api_key": " key ", "api_secret": ""}
	if err := fields.Require("api_key"); err != nil {
		t.Fatalf("require api_key: %v", err)
	}
	if err := fields.Require("api_key", "api_secret"); err == nil {
		t.Fatal("expected blank api_secret to fail")
	}
	if got := fields.Get("api_key"); got != "key" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
}

func TestSessionViewOmitsToken(t *testing.T) {
	session := Session{
		Key:         NewSessionKey("u1", "dhan"),
		State:       SessionStateConnected,
		AccessToken: "secret-token",
		ExpiresAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Failures:    2,
	}
	view := session.View()
	if view.Key != session.Key || view.State != session.State || view.Failures != 2 {
		t.Fatalf("unexpected view %+v", view)
	}
	if !view.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected view expiry %v", view.ExpiresAt)
	}
}
