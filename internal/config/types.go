package config

import "polibase/pkg/ratelimiter"

const (
	ModeEnabled  = "enabled"
	ModeDisabled = "disabled"

	defaultSafetyMargin     = "1s"
	defaultDelayLogInterval = "10s"
)

// Config is the YAML document describing the admission gate.
type Config struct {
	Mode             string       `yaml:"mode"`
	SafetyMargin     string       `yaml:"safety_margin"`
	DelayLogInterval string       `yaml:"delay_log_interval"`
	Tiers            []TierConfig `yaml:"tiers"`

	// Reference options, used when tiers is empty.
	MaxRequestsPerMinute      int `yaml:"max_requests_per_minute"`
	MaxRequestsPerFiveMinutes int `yaml:"max_requests_per_five_minutes"`
	MaxRequestsPerTenMinutes  int `yaml:"max_requests_per_ten_minutes"`
}

// TierConfig is one rolling-window tier, with the window as a duration string.
type TierConfig struct {
	Window      string `yaml:"window"`
	MaxRequests int    `yaml:"max_requests"`
}

// Default returns the reference deployment configuration.
func Default() Config {
	defaults := ratelimiter.DefaultConfig()
	cfg := Config{}
	for _, tier := range defaults.Tiers {
		cfg.Tiers = append(cfg.Tiers, TierConfig{Window: tier.Window.String(), MaxRequests: tier.MaxRequests})
	}
	Normalize(&cfg)
	return cfg
}

// Enabled reports whether admission control is active.
func (c Config) Enabled() bool {
	return c.Mode != ModeDisabled
}
