package core

import (
	"fmt"
	"strings"
	"time"
)

type ProviderConfig struct {
	SessionLifetime    time.Duration `koanf:"session_lifetime" mapstructure:"session_lifetime"`
	RefreshLead        time.Duration `koanf:"refresh_lead" mapstructure:"refresh_lead"`
	MaxRefreshFailures int           `koanf:"max_refresh_failures" mapstructure:"max_refresh_failures"`
}

type SchedulerConfig struct {
	Tick           time.Duration `koanf:"tick" mapstructure:"tick"`
	CallTimeout    time.Duration `koanf:"call_timeout" mapstructure:"call_timeout"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	Workers        int           `koanf:"workers" mapstructure:"workers"`
}

type Config struct {
	ServiceName    string                    `koanf:"service_name" mapstructure:"service_name"`
	PendingAuthTTL time.Duration             `koanf:"pending_auth_ttl" mapstructure:"pending_auth_ttl"`
	Scheduler      SchedulerConfig           `koanf:"scheduler" mapstructure:"scheduler"`
	Providers      map[string]ProviderConfig `koanf:"providers" mapstructure:"providers"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:    "broker-sessions",
		PendingAuthTTL: 5 * time.Minute,
		Scheduler: SchedulerConfig{
			Tick:           30 * time.Second,
			CallTimeout:    15 * time.Second,
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Workers:        4,
		},
		Providers: map[string]ProviderConfig{},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.PendingAuthTTL < 0 {
		return fmt.Errorf("core: pending_auth_ttl must not be negative")
	}
	if c.Scheduler.Tick < 0 {
		return fmt.Errorf("core: scheduler.tick must not be negative")
	}
	if c.Scheduler.CallTimeout < 0 {
		return fmt.Errorf("core: scheduler.call_timeout must not be negative")
	}
	if c.Scheduler.MaxAttempts < 0 {
		return fmt.Errorf("core: scheduler.max_attempts must not be negative")
	}
	if c.Scheduler.Workers < 0 {
		return fmt.Errorf("core: scheduler.workers must not be negative")
	}
	for provider, pc := range c.Providers {
		if strings.TrimSpace(provider) == "" {
			return fmt.Errorf("core: provider config key must not be empty")
		}
		if pc.SessionLifetime < 0 || pc.RefreshLead < 0 || pc.MaxRefreshFailures < 0 {
			return fmt.Errorf("core: provider config for %q must not carry negative values", provider)
		}
	}
	return nil
}

// ProviderOverride returns the configured override for a provider, if any.
func (c Config) ProviderOverride(provider string) (ProviderConfig, bool) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || len(c.Providers) == 0 {
		return ProviderConfig{}, false
	}
	pc, ok := c.Providers[provider]
	return pc, ok
}
