package config

import (
	"strings"

	"polibase/pkg/ratelimiter"
)

// Normalize fills defaults. Reference options expand into tiers only when no
// explicit tiers are given, and a config with neither gets the reference
// deployment.
func Normalize(cfg *Config) {
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModeEnabled
	}
	if strings.TrimSpace(cfg.SafetyMargin) == "" {
		cfg.SafetyMargin = defaultSafetyMargin
	}
	if strings.TrimSpace(cfg.DelayLogInterval) == "" {
		cfg.DelayLogInterval = defaultDelayLogInterval
	}
	if len(cfg.Tiers) > 0 || hasReferenceOptions(*cfg) {
		return
	}
	defaults := ratelimiter.DefaultConfig()
	for _, tier := range defaults.Tiers {
		cfg.Tiers = append(cfg.Tiers, TierConfig{Window: tier.Window.String(), MaxRequests: tier.MaxRequests})
	}
}

func hasReferenceOptions(cfg Config) bool {
	return cfg.MaxRequestsPerMinute != 0 || cfg.MaxRequestsPerFiveMinutes != 0 || cfg.MaxRequestsPerTenMinutes != 0
}
