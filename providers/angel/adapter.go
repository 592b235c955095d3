package angel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-broker-sessions/core"
	"github.com/goliatone/go-broker-sessions/providers"
)

const (
	ProviderID = "angel"

	APIBaseURL = "https://apiconnect.angelbroking.com"

	loginPath = "/rest/auth/angelbroking/user/v1/loginByPassword"
)

const (
	fieldAPIKey     = "api_key"
	fieldClientCode = "client_code"
	fieldPassword   = "password"
	fieldTOTPSeed   = "totp_seed"
)

type Config struct {
	APIBaseURL string
	// LocalIP, PublicIP and MACAddress fill Angel's mandatory client
	// fingerprint headers. The upstream accepts placeholder values.
	LocalIP    string
	PublicIP   string
	MACAddress string
	Timeout    time.Duration
	HTTPClient providers.HTTPDoer
	Now        func() time.Time
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL: APIBaseURL,
		LocalIP:    "127.0.0.1",
		PublicIP:   "127.0.0.1",
		MACAddress: "00:00:00:00:00:00",
	}
}

// Adapter logs into Angel One with client code, password, and a TOTP
// generated from the stored seed. The whole login is unattended, so a
// refresh simply runs it again.
type Adapter struct {
	cfg        Config
	httpClient providers.HTTPDoer
	nowFn      func() time.Time
}

func New(cfg Config) (*Adapter, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaults.APIBaseURL
	}
	if strings.TrimSpace(cfg.LocalIP) == "" {
		cfg.LocalIP = defaults.LocalIP
	}
	if strings.TrimSpace(cfg.PublicIP) == "" {
		cfg.PublicIP = defaults.PublicIP
	}
	if strings.TrimSpace(cfg.MACAddress) == "" {
		cfg.MACAddress = defaults.MACAddress
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")

	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}

	return &Adapter{
		cfg:        cfg,
		httpClient: providers.EnsureHTTPClient(cfg.HTTPClient, cfg.Timeout),
		nowFn:      nowFn,
	}, nil
}

func Descriptor() core.Descriptor {
	return core.Descriptor{
		Provider:           ProviderID,
		Kind:               core.AuthKindFormOTC,
		RequiredFields:     []string{fieldAPIKey, fieldClientCode, fieldPassword, fieldTOTPSeed},
		SessionLifetime:    12 * time.Hour,
		RefreshLead:        30 * time.Minute,
		MaxRefreshFailures: 3,
	}
}

func (*Adapter) Provider() string {
	return ProviderID
}

func (*Adapter) Kind() core.AuthKind {
	return core.AuthKindFormOTC
}

func (a *Adapter) Connect(ctx context.Context, fields core.CredentialFields) (core.ConnectOutcome, error) {
	grant, err := a.login(ctx, fields)
	if err != nil {
		return core.ConnectOutcome{}, err
	}
	return core.ConnectOutcome{Grant: grant}, nil
}

func (*Adapter) CompleteRedirect(context.Context, core.CredentialFields, string) (core.SessionGrant, error) {
	return core.SessionGrant{}, core.NewAuthError(ProviderID, "angel does not use a redirect login")
}

// Refresh cannot extend the jwt in place. The service answers the
// unsupported error with a reconnect, which reruns the unattended login.
func (*Adapter) Refresh(context.Context, string) (core.SessionGrant, error) {
	return core.SessionGrant{}, core.NewUnsupportedError(ProviderID)
}

func (a *Adapter) login(ctx context.Context, fields core.CredentialFields) (core.SessionGrant, error) {
	if err := fields.Require(fieldAPIKey, fieldClientCode, fieldPassword, fieldTOTPSeed); err != nil {
		return core.SessionGrant{}, err
	}

	totp, err := providers.GenerateTOTP(fields.Get(fieldTOTPSeed), a.nowFn())
	if err != nil {
		return core.SessionGrant{}, core.NewAuthError(ProviderID, "totp seed is not usable: "+err.Error())
	}

	payload, err := json.Marshal(map[string]string{
		"clientcode": fields.Get(fieldClientCode),
		"password":   fields.Get(fieldPassword),
		"totp":       totp,
	})
	if err != nil {
		return core.SessionGrant{}, fmt.Errorf("angel: encode login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.APIBaseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return core.SessionGrant{}, fmt.Errorf("angel: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", a.cfg.LocalIP)
	req.Header.Set("X-ClientPublicIP", a.cfg.PublicIP)
	req.Header.Set("X-MACAddress", a.cfg.MACAddress)
	req.Header.Set("X-PrivateKey", fields.Get(fieldAPIKey))

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return core.SessionGrant{}, providers.ClassifyTransportError(ProviderID, err)
	}
	body, err := providers.ReadLimitedBody(resp)
	if err != nil {
		return core.SessionGrant{}, core.NewNetworkError(ProviderID, "read login response", err)
	}

	var parsed struct {
		Status    bool   `json:"status"`
		Message   string `json:"message"`
		ErrorCode string `json:"errorcode"`
		Data      struct {
			JWTToken string `json:"jwtToken"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return core.SessionGrant{}, providers.UpstreamStatusError(ProviderID, resp.StatusCode, nil)
		}
		return core.SessionGrant{}, core.NewNetworkError(ProviderID, "decode login response", err)
	}

	if !parsed.Status || parsed.Data.JWTToken == "" {
		message := strings.TrimSpace(parsed.Message)
		if message == "" {
			message = "login rejected"
		}
		if parsed.ErrorCode != "" {
			message = parsed.ErrorCode + ": " + message
		}
		if resp.StatusCode >= 500 {
			return core.SessionGrant{}, core.NewNetworkError(ProviderID, message, nil)
		}
		return core.SessionGrant{}, core.NewAuthError(ProviderID, message)
	}

	return core.SessionGrant{AccessToken: parsed.Data.JWTToken}, nil
}

var _ core.Adapter = (*Adapter)(nil)
