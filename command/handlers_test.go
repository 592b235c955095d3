package command

import (
	"context"
	"testing"

	"github.com/goliatone/go-broker-sessions/core"
	gocmd "github.com/goliatone/go-command"
)

type stubMutatingService struct {
	registerFn   func(context.Context, core.RegisterCredentialsRequest) (core.AccountRef, error)
	deleteFn     func(context.Context, core.SessionKey) error
	connectFn    func(context.Context, core.ConnectRequest) (core.ConnectResult, error)
	completeFn   func(context.Context, core.CompleteAuthRequest) (core.SessionStatus, error)
	disconnectFn func(context.Context, core.SessionKey) error
	refreshFn    func(context.Context, core.RefreshRequest) (core.RefreshResult, error)
}

func (s stubMutatingService) RegisterCredentials(ctx context.Context, req core.RegisterCredentialsRequest) (core.AccountRef, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return core.AccountRef{}, nil
}

func (s stubMutatingService) DeleteCredentials(ctx context.Context, key core.SessionKey) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, key)
	}
	return nil
}

func (s stubMutatingService) Connect(ctx context.Context, req core.ConnectRequest) (core.ConnectResult, error) {
	if s.connectFn != nil {
		return s.connectFn(ctx, req)
	}
	return core.ConnectResult{}, nil
}

func (s stubMutatingService) CompleteAuth(ctx context.Context, req core.CompleteAuthRequest) (core.SessionStatus, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, req)
	}
	return core.SessionStatus{}, nil
}

func (s stubMutatingService) Disconnect(ctx context.Context, key core.SessionKey) error {
	if s.disconnectFn != nil {
		return s.disconnectFn(ctx, key)
	}
	return nil
}

func (s stubMutatingService) RefreshSession(ctx context.Context, req core.RefreshRequest) (core.RefreshResult, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, req)
	}
	return core.RefreshResult{}, nil
}

func TestConnectCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.ConnectResult{
		Pending:          true,
		RedirectURL:      "https://kite.zerodha.com/connect/login?api_key=key&v=3",
		CorrelationToken: "tok-1",
	}
	called := false

	svc := stubMutatingService{
		connectFn: func(_ context.Context, req core.ConnectRequest) (core.ConnectResult, error) {
			called = true
			if req.Provider != "kite" {
				t.Fatalf("expected provider kite, got %q", req.Provider)
			}
			return expected, nil
		},
	}

	cmd := NewConnectCommand(svc)
	collector := gocmd.NewResult[core.ConnectResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ConnectMessage{Request: core.ConnectRequest{
		UserID:   "u1",
		Provider: "kite",
	}})
	if err != nil {
		t.Fatalf("execute connect: %v", err)
	}
	if !called {
		t.Fatal("expected connect service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatal("expected result to be stored")
	}
	if result.RedirectURL != expected.RedirectURL || result.CorrelationToken != expected.CorrelationToken {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestRegisterCredentialsCommand_StoresAccountRef(t *testing.T) {
	expected := core.AccountRef{UserID: "u1", Provider: "dhan"}
	svc := stubMutatingService{
		registerFn: func(_ context.Context, req core.RegisterCredentialsRequest) (core.AccountRef, error) {
			if len(req.Fields) == 0 {
				t.Fatal("expected credential fields forwarded")
			}
			return expected, nil
		},
	}

	cmd := NewRegisterCredentialsCommand(svc)
	collector := gocmd.NewResult[core.AccountRef]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, RegisterCredentialsMessage{Request: core.RegisterCredentialsRequest{
		UserID:   "u1",
		Provider: "dhan",
		Fields:   core.CredentialFields{"client_id": "c1", "access_token": "t1"},
	}})
	if err != nil {
		t.Fatalf("execute register: %v", err)
	}
	stored, ok := collector.Load()
	if !ok {
		t.Fatal("expected account ref stored")
	}
	if stored != expected {
		t.Fatalf("unexpected account ref: %#v", stored)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("disconnect", func(t *testing.T) {
		called := false
		key := core.NewSessionKey("u1", "kite")
		svc := stubMutatingService{
			disconnectFn: func(_ context.Context, got core.SessionKey) error {
				called = true
				if got != key {
					t.Fatalf("unexpected key %v", got)
				}
				return nil
			},
		}
		cmd := NewDisconnectCommand(svc)
		if err := cmd.Execute(context.Background(), DisconnectMessage{Key: key}); err != nil {
			t.Fatalf("execute disconnect: %v", err)
		}
		if !called {
			t.Fatal("expected disconnect invocation")
		}
	})

	t.Run("delete credentials", func(t *testing.T) {
		called := false
		key := core.NewSessionKey("u1", "angel")
		svc := stubMutatingService{
			deleteFn: func(_ context.Context, got core.SessionKey) error {
				called = true
				if got != key {
					t.Fatalf("unexpected key %v", got)
				}
				return nil
			},
		}
		cmd := NewDeleteCredentialsCommand(svc)
		if err := cmd.Execute(context.Background(), DeleteCredentialsMessage{Key: key}); err != nil {
			t.Fatalf("execute delete credentials: %v", err)
		}
		if !called {
			t.Fatal("expected delete invocation")
		}
	})

	t.Run("refresh session", func(t *testing.T) {
		key := core.NewSessionKey("u1", "dhan")
		svc := stubMutatingService{
			refreshFn: func(_ context.Context, req core.RefreshRequest) (core.RefreshResult, error) {
				if req.Key != key {
					t.Fatalf("unexpected key %v", req.Key)
				}
				return core.RefreshResult{Attempts: 1}, nil
			},
		}
		cmd := NewRefreshSessionCommand(svc)
		collector := gocmd.NewResult[core.RefreshResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		if err := cmd.Execute(ctx, RefreshSessionMessage{Request: core.RefreshRequest{Key: key}}); err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || stored.Attempts != 1 {
			t.Fatalf("expected refresh result stored, got %#v ok=%v", stored, ok)
		}
	})

	t.Run("complete auth", func(t *testing.T) {
		svc := stubMutatingService{
			completeFn: func(_ context.Context, req core.CompleteAuthRequest) (core.SessionStatus, error) {
				if req.AuthCode != "req-token" {
					t.Fatalf("unexpected auth code %q", req.AuthCode)
				}
				return core.SessionStatus{Connected: true}, nil
			},
		}
		cmd := NewCompleteAuthCommand(svc)
		collector := gocmd.NewResult[core.SessionStatus]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, CompleteAuthMessage{Request: core.CompleteAuthRequest{
			UserID:           "u1",
			Provider:         "kite",
			CorrelationToken: "tok",
			AuthCode:         "req-token",
		}})
		if err != nil {
			t.Fatalf("execute complete auth: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || !stored.Connected {
			t.Fatalf("expected connected status stored, got %#v ok=%v", stored, ok)
		}
	})
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{"connect valid", ConnectMessage{Request: core.ConnectRequest{UserID: "u1", Provider: "kite"}}, true},
		{"connect missing provider", ConnectMessage{Request: core.ConnectRequest{UserID: "u1"}}, false},
		{"register missing fields", RegisterCredentialsMessage{Request: core.RegisterCredentialsRequest{UserID: "u1", Provider: "kite"}}, false},
		{"complete auth missing token", CompleteAuthMessage{Request: core.CompleteAuthRequest{UserID: "u1", Provider: "kite", AuthCode: "x"}}, false},
		{"disconnect valid", DisconnectMessage{Key: core.NewSessionKey("u1", "kite")}, true},
		{"refresh missing user", RefreshSessionMessage{Request: core.RefreshRequest{Key: core.SessionKey{Provider: "kite"}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation failure")
			}
		})
	}
}
