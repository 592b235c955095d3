package dhan

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	"github.com/goliatone/go-broker-sessions/providers"
)

const (
	ProviderID = "dhan"

	APIBaseURL = "https://api.dhan.co"

	accessTokenHeader = "access-token"
)

const (
	fieldClientID    = "client_id"
	fieldAccessToken = "access_token"
)

type Config struct {
	APIBaseURL string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
}

func DefaultConfig() Config {
	return Config{APIBaseURL: APIBaseURL}
}

// Adapter validates a user supplied Dhan access token by probing an
// authenticated endpoint. There is no interactive phase; the token either
// works or it does not.
type Adapter struct {
	cfg        Config
	httpClient providers.HTTPDoer
}

func New(cfg Config) (*Adapter, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	return &Adapter{
		cfg:        cfg,
		httpClient: providers.EnsureHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}, nil
}

func Descriptor() core.Descriptor {
	return core.Descriptor{
		Provider:           ProviderID,
		Kind:               core.AuthKindDirectToken,
		RequiredFields:     []string{fieldClientID, fieldAccessToken},
		SessionLifetime:    24 * time.Hour,
		RefreshLead:        30 * time.Minute,
		MaxRefreshFailures: 3,
	}
}

func (*Adapter) Provider() string {
	return ProviderID
}

func (*Adapter) Kind() core.AuthKind {
	return core.AuthKindDirectToken
}

func (a *Adapter) Connect(ctx context.Context, fields core.CredentialFields) (core.ConnectOutcome, error) {
	if err := fields.Require(fieldAccessToken); err != nil {
		return core.ConnectOutcome{}, err
	}
	token := fields.Get(fieldAccessToken)
	if err := a.probe(ctx, token); err != nil {
		return core.ConnectOutcome{}, err
	}
	return core.ConnectOutcome{Grant: core.SessionGrant{AccessToken: token}}, nil
}

func (*Adapter) CompleteRedirect(context.Context, core.CredentialFields, string) (core.SessionGrant, error) {
	return core.SessionGrant{}, core.NewAuthError(ProviderID, "dhan does not use a redirect login")
}

// Refresh re-validates the existing token. The token itself never changes;
// a failed probe means the user has to supply a new one.
func (a *Adapter) Refresh(ctx context.Context, accessToken string) (core.SessionGrant, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return core.SessionGrant{}, core.NewAuthError(ProviderID, "access token is empty")
	}
	if err := a.probe(ctx, token); err != nil {
		return core.SessionGrant{}, err
	}
	return core.SessionGrant{AccessToken: token}, nil
}

// probe hits the positions endpoint, the cheapest call that requires a
// valid token.
func (a *Adapter) probe(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.APIBaseURL+"/positions", nil)
	if err != nil {
		return core.NewNetworkError(ProviderID, "build probe request", err)
	}
	req.Header.Set(accessTokenHeader, token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return providers.ClassifyTransportError(ProviderID, err)
	}
	body, err := providers.ReadLimitedBody(resp)
	if err != nil {
		return core.NewNetworkError(ProviderID, "read probe response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providers.UpstreamStatusError(ProviderID, resp.StatusCode, body)
	}
	return nil
}

var _ core.Adapter = (*Adapter)(nil)
