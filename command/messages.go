package command

import (
	"strings"

	"github.com/goliatone/go-broker-sessions/core"
)

const (
	TypeRegisterCredentials = "broker_sessions.command.credentials.register"
	TypeDeleteCredentials   = "broker_sessions.command.credentials.delete"
	TypeConnect             = "broker_sessions.command.connect"
	TypeCompleteAuth        = "broker_sessions.command.auth.complete"
	TypeDisconnect          = "broker_sessions.command.disconnect"
	TypeRefreshSession      = "broker_sessions.command.session.refresh"
)

type RegisterCredentialsMessage struct {
	Request core.RegisterCredentialsRequest
}

func (RegisterCredentialsMessage) Type() string { return TypeRegisterCredentials }

func (m RegisterCredentialsMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if len(m.Request.Fields) == 0 {
		return commandValidationError("fields", "credential fields are required")
	}
	return nil
}

type DeleteCredentialsMessage struct {
	Key core.SessionKey
}

func (DeleteCredentialsMessage) Type() string { return TypeDeleteCredentials }

func (m DeleteCredentialsMessage) Validate() error {
	return validateKey(m.Key)
}

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	return nil
}

type CompleteAuthMessage struct {
	Request core.CompleteAuthRequest
}

func (CompleteAuthMessage) Type() string { return TypeCompleteAuth }

func (m CompleteAuthMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.Request.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Request.CorrelationToken) == "" {
		return commandValidationError("correlation_token", "correlation token is required")
	}
	if strings.TrimSpace(m.Request.AuthCode) == "" {
		return commandValidationError("auth_code", "auth code is required")
	}
	return nil
}

type DisconnectMessage struct {
	Key core.SessionKey
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	return validateKey(m.Key)
}

type RefreshSessionMessage struct {
	Request core.RefreshRequest
}

func (RefreshSessionMessage) Type() string { return TypeRefreshSession }

func (m RefreshSessionMessage) Validate() error {
	return validateKey(m.Request.Key)
}

func validateKey(key core.SessionKey) error {
	if strings.TrimSpace(key.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(key.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	return nil
}
