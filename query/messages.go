package query

import (
	"strings"

	"github.com/goliatone/go-broker-sessions/core"
)

const (
	TypeGetStatus    = "broker_sessions.query.status.get"
	TypeListAccounts = "broker_sessions.query.accounts.list"
	TypeHealth       = "broker_sessions.query.health"
)

type GetStatusMessage struct {
	Key core.SessionKey
}

func (GetStatusMessage) Type() string { return TypeGetStatus }

func (m GetStatusMessage) Validate() error {
	if strings.TrimSpace(m.Key.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Key.Provider) == "" {
		return queryValidationError("provider", "provider is required")
	}
	return nil
}

type ListAccountsMessage struct{}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (ListAccountsMessage) Validate() error { return nil }

type HealthMessage struct{}

func (HealthMessage) Type() string { return TypeHealth }

func (HealthMessage) Validate() error { return nil }
