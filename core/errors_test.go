package core

import (
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorPredicates(t *testing.T) {
	key := NewSessionKey("u1", "kite")

	if !IsAuthError(NewAuthError("kite", "rejected")) {
		t.Fatal("expected auth predicate to match")
	}
	if !IsNetworkError(NewNetworkError("kite", "timeout", nil)) {
		t.Fatal("expected network predicate to match")
	}
	if !IsRefreshUnsupported(NewUnsupportedError("kite")) {
		t.Fatal("expected refresh unsupported predicate to match")
	}
	if !IsBusy(NewBusyError(key)) {
		t.Fatal("expected busy predicate to match")
	}
	if IsAuthError(NewNetworkError("kite", "timeout", nil)) {
		t.Fatal("predicates must not cross categories")
	}
	if IsAuthError(nil) {
		t.Fatal("nil must never match a predicate")
	}
}

func TestNetworkErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := NewNetworkError("dhan", "positions probe failed", cause)
	if err.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %s", err.Category)
	}
	if err.Unwrap() == nil {
		t.Fatal("expected the cause to be preserved")
	}
}

func TestBrokerErrorMapperPassesRichErrors(t *testing.T) {
	original := NewAuthError("kite", "checksum mismatch upstream")
	mapped := brokerErrorMapper(original)
	if mapped.TextCode != BrokerErrorAuthFailed {
		t.Fatalf("expected text code preserved, got %s", mapped.TextCode)
	}
	if mapped.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 envelope, got %d", mapped.Code)
	}
}

func TestBrokerErrorMapperHeuristics(t *testing.T) {
	cases := []struct {
		message  string
		textCode string
		status   int
	}{
		{"provider not registered: upstox", BrokerErrorProviderNotFound, http.StatusNotFound},
		{"credential record not found", BrokerErrorCredentialsNotFound, http.StatusNotFound},
		{"session not found for kite:u1", BrokerErrorSessionNotFound, http.StatusNotFound},
		{"correlation token expired", BrokerErrorAuthStateInvalid, http.StatusUnauthorized},
		{"session lock already held", BrokerErrorConnectBusy, http.StatusConflict},
		{"field api_key is required", BrokerErrorBadInput, http.StatusBadRequest},
	}
	for _, tc := range cases {
		mapped := brokerErrorMapper(fmt.Errorf("%s", tc.message))
		if mapped.TextCode != tc.textCode {
			t.Fatalf("%q: expected %s, got %s", tc.message, tc.textCode, mapped.TextCode)
		}
		if mapped.Code != tc.status {
			t.Fatalf("%q: expected status %d, got %d", tc.message, tc.status, mapped.Code)
		}
	}
}

func TestBrokerErrorMapperNil(t *testing.T) {
	if brokerErrorMapper(nil) != nil {
		t.Fatal("nil must map to nil")
	}
}

func TestEnsureEnvelopeFillsDefaults(t *testing.T) {
	err := goerrors.New("boom", goerrors.CategoryExternal)
	ensured := ensureBrokerErrorEnvelope(err)
	if ensured.TextCode != BrokerErrorNetwork {
		t.Fatalf("expected default network text code, got %s", ensured.TextCode)
	}
	if ensured.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", ensured.Code)
	}
}
