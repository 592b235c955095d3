package gologger

import "testing"

func TestEnsurePrefersCandidates(t *testing.T) {
	fallback := Ensure("broker-scheduler")
	if fallback == nil {
		t.Fatal("expected a fallback logger")
	}
	if got := Ensure("broker-scheduler", nil, fallback); got != fallback {
		t.Fatal("expected first non-nil candidate to win")
	}
}

func TestResolveFallsBackToNop(t *testing.T) {
	provider, logger := Resolve("broker-sessions", nil, nil)
	if logger == nil {
		t.Fatal("expected a usable logger")
	}
	if provider == nil {
		t.Fatal("expected a usable provider")
	}
}

func TestJobLoggingHandlesNil(t *testing.T) {
	jobProvider, jobLogger := JobLogging(nil, nil)
	if jobProvider != nil {
		t.Fatal("nil provider must map to nil")
	}
	if jobLogger != nil {
		t.Fatal("nil logger must map to nil")
	}
}

func TestResolveForJobWiresBoth(t *testing.T) {
	provider, logger, jobProvider, jobLogger := ResolveForJob("broker-sessions", nil, nil)
	if provider == nil || logger == nil {
		t.Fatal("expected resolved glog pair")
	}
	if jobProvider == nil || jobLogger == nil {
		t.Fatal("expected resolved go-job pair")
	}
}
