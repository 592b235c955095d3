package kite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	"github.com/goliatone/go-broker-sessions/providers"
)

const (
	ProviderID = "kite"

	LoginURL   = "https://kite.zerodha.com/connect/login"
	APIBaseURL = "https://api.kite.trade"

	loginAPIVersion = "3"
)

const (
	fieldAPIKey    = "api_key"
	fieldAPISecret = "api_secret"
)

type Config struct {
	LoginURL   string
	APIBaseURL string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{
		LoginURL:   LoginURL,
		APIBaseURL: APIBaseURL,
	}
}

// Adapter drives Zerodha Kite's redirect login. Phase one hands the user a
// login URL, phase two exchanges the returned request token plus a checksum
// for an access token.
type Adapter struct {
	cfg        Config
	httpClient providers.HTTPDoer
}

func New(cfg Config) (*Adapter, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.LoginURL) == "" {
		cfg.LoginURL = defaults.LoginURL
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	cfg.LoginURL = strings.TrimRight(strings.TrimSpace(cfg.LoginURL), "/")
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	return &Adapter{
		cfg:        cfg,
		httpClient: providers.EnsureHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func Descriptor() core.Descriptor {
	return core.Descriptor{
		Provider:           ProviderID,
		Kind:               core.AuthKindRedirect,
		RequiredFields:     []string{fieldAPIKey, fieldAPISecret},
		SessionLifetime:    24 * time.Hour,
		RefreshLead:        30 * time.Minute,
		MaxRefreshFailures: 3,
	}
}

func (*Adapter) Provider() string {
	return ProviderID
}

func (*Adapter) Kind() core.AuthKind {
	return core.AuthKindRedirect
}

func (a *Adapter) Connect(_ context.Context, fields core.CredentialFields) (core.ConnectOutcome, error) {
	if err := fields.Require(fieldAPIKey, fieldAPISecret); err != nil {
		return core.ConnectOutcome{}, err
	}

	query := url.Values{}
	query.Set("api_key", fields.Get(fieldAPIKey))
	query.Set("v", loginAPIVersion)

	return core.ConnectOutcome{
		Pending:     true,
		RedirectURL: a.cfg.LoginURL + "?" + query.Encode(),
	}, nil
}

func (a *Adapter) CompleteRedirect(ctx context.Context, fields core.CredentialFields, authCode string) (core.SessionGrant, error) {
	if err := fields.Require(fieldAPIKey, fieldAPISecret); err != nil {
		return core.SessionGrant{}, err
	}
	requestToken := strings.TrimSpace(authCode)
	if requestToken == "" {
		return core.SessionGrant{}, fmt.Errorf("kite: request token is required")
	}

	apiKey := fields.Get(fieldAPIKey)
	form := url.Values{}
	form.Set("api_key", apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", sessionChecksum(apiKey, requestToken, fields.Get(fieldAPISecret)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.APIBaseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return core.SessionGrant{}, fmt.Errorf("kite: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return core.SessionGrant{}, providers.ClassifyTransportError(ProviderID, err)
	}
	body, err := providers.ReadLimitedBody(resp)
	if err != nil {
		return core.SessionGrant{}, core.NewNetworkError(ProviderID, "read token response", err)
	}

	var parsed struct {
		Status string `json:"status"`
		Data   struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
		Message   string `json:"message"`
		ErrorType string `json:"error_type"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if !statusOK(resp.StatusCode) {
			return core.SessionGrant{}, providers.UpstreamStatusError(ProviderID, resp.StatusCode, nil)
		}
		return core.SessionGrant{}, core.NewNetworkError(ProviderID, "decode token response", err)
	}

	if parsed.Status != "success" || parsed.Data.AccessToken == "" {
		message := strings.TrimSpace(parsed.Message)
		if message == "" {
			message = "token exchange rejected"
		}
		if parsed.ErrorType != "" {
			message = parsed.ErrorType + ": " + message
		}
		if !statusOK(resp.StatusCode) && !providers.IsAuthStatus(resp.StatusCode) {
			return core.SessionGrant{}, core.NewNetworkError(ProviderID, message, nil)
		}
		return core.SessionGrant{}, core.NewAuthError(ProviderID, message)
	}

	return core.SessionGrant{AccessToken: parsed.Data.AccessToken}, nil
}

// Refresh is not supported upstream. Kite access tokens die at the end of
// the trading day and a new interactive login is required.
func (*Adapter) Refresh(context.Context, string) (core.SessionGrant, error) {
	return core.SessionGrant{}, core.NewUnsupportedError(ProviderID)
}

func sessionChecksum(apiKey string, requestToken string, apiSecret string) string {
	sum := sha256.Sum256([]byte(apiKey + requestToken + apiSecret))
	return hex.EncodeToString(sum[:])
}

func statusOK(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

var _ core.Adapter = (*Adapter)(nil)
