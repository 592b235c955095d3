package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	BrokerErrorBadInput            = "BROKER_BAD_INPUT"
	BrokerErrorProviderNotFound    = "BROKER_PROVIDER_NOT_FOUND"
	BrokerErrorCredentialsNotFound = "BROKER_CREDENTIALS_NOT_FOUND"
	BrokerErrorSessionNotFound     = "BROKER_SESSION_NOT_FOUND"
	BrokerErrorAuthFailed          = "BROKER_AUTH_FAILED"
	BrokerErrorAuthStateInvalid    = "BROKER_AUTH_STATE_INVALID"
	BrokerErrorNetwork             = "BROKER_NETWORK_ERROR"
	BrokerErrorRefreshUnsupported  = "BROKER_REFRESH_UNSUPPORTED"
	BrokerErrorConnectBusy         = "BROKER_CONNECT_BUSY"
	BrokerErrorInternal            = "BROKER_INTERNAL_ERROR"
)

// NewAuthError marks a provider rejection of the stored credentials or
// token. The scheduler treats it as terminal and never retries it.
func NewAuthError(provider string, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(BrokerErrorAuthFailed).
		WithMetadata(map[string]any{"provider": provider})
}

// NewNetworkError marks a transient transport failure that is safe to retry.
func NewNetworkError(provider string, message string, cause error) *goerrors.Error {
	if cause != nil {
		return goerrors.Wrap(cause, goerrors.CategoryExternal, message).
			WithTextCode(BrokerErrorNetwork).
			WithMetadata(map[string]any{"provider": provider})
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithTextCode(BrokerErrorNetwork).
		WithMetadata(map[string]any{"provider": provider})
}

// NewUnsupportedError reports that a provider cannot refresh in place. The
// service answers it with a full reconnect through the vault.
func NewUnsupportedError(provider string) *goerrors.Error {
	return goerrors.New("core: provider does not support in-place refresh", goerrors.CategoryOperation).
		WithTextCode(BrokerErrorRefreshUnsupported).
		WithMetadata(map[string]any{"provider": provider})
}

// NewBusyError reports that a connect attempt is already in flight for the key.
func NewBusyError(key SessionKey) *goerrors.Error {
	return goerrors.New("core: connect already in progress for "+key.String(), goerrors.CategoryConflict).
		WithTextCode(BrokerErrorConnectBusy)
}

func NewSessionNotFoundError(key SessionKey) *goerrors.Error {
	return goerrors.New("core: session not found for "+key.String(), goerrors.CategoryNotFound).
		WithTextCode(BrokerErrorSessionNotFound)
}

func NewCredentialsNotFoundError(key SessionKey) *goerrors.Error {
	return goerrors.New("core: credentials not found for "+key.String(), goerrors.CategoryNotFound).
		WithTextCode(BrokerErrorCredentialsNotFound)
}

func NewAuthStateError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(BrokerErrorAuthStateInvalid)
}

func IsAuthError(err error) bool {
	return hasTextCode(err, BrokerErrorAuthFailed)
}

func IsNetworkError(err error) bool {
	return hasTextCode(err, BrokerErrorNetwork)
}

func IsRefreshUnsupported(err error) bool {
	return hasTextCode(err, BrokerErrorRefreshUnsupported)
}

func IsBusy(err error) bool {
	return hasTextCode(err, BrokerErrorConnectBusy)
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), textCode)
}

func brokerErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureBrokerErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "provider") && (strings.Contains(msg, "not registered") || strings.Contains(msg, "unknown")):
		return newBrokerError(err.Error(), goerrors.CategoryNotFound, BrokerErrorProviderNotFound)
	case strings.Contains(msg, "credential") && strings.Contains(msg, "not found"):
		return newBrokerError(err.Error(), goerrors.CategoryNotFound, BrokerErrorCredentialsNotFound)
	case strings.Contains(msg, "session") && strings.Contains(msg, "not found"):
		return newBrokerError(err.Error(), goerrors.CategoryNotFound, BrokerErrorSessionNotFound)
	case strings.Contains(msg, "correlation token"), strings.Contains(msg, "pending auth"):
		return newBrokerError(err.Error(), goerrors.CategoryAuth, BrokerErrorAuthStateInvalid)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "already in progress"):
		return newBrokerError(err.Error(), goerrors.CategoryConflict, BrokerErrorConnectBusy)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newBrokerError(err.Error(), goerrors.CategoryBadInput, BrokerErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureBrokerErrorEnvelope(mapped)
}

func newBrokerError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureBrokerErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureBrokerErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = brokerHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultBrokerTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultBrokerTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return BrokerErrorBadInput
	case goerrors.CategoryNotFound:
		return BrokerErrorSessionNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return BrokerErrorAuthFailed
	case goerrors.CategoryConflict:
		return BrokerErrorConnectBusy
	case goerrors.CategoryExternal:
		return BrokerErrorNetwork
	case goerrors.CategoryOperation:
		return BrokerErrorRefreshUnsupported
	default:
		return BrokerErrorInternal
	}
}

func brokerHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
