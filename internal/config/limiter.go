package config

import (
	"fmt"
	"time"

	"polibase/pkg/ratelimiter"
)

// Limiter converts a validated config into gate settings.
func (c Config) Limiter() (ratelimiter.Config, error) {
	margin, err := time.ParseDuration(c.SafetyMargin)
	if err != nil {
		return ratelimiter.Config{}, fmt.Errorf("safety_margin: %w", err)
	}
	out := ratelimiter.Config{SafetyMargin: margin}
	if len(c.Tiers) == 0 {
		out.Tiers = ratelimiter.ReferenceTiers(c.MaxRequestsPerMinute, c.MaxRequestsPerFiveMinutes, c.MaxRequestsPerTenMinutes)
	}
	for i, tier := range c.Tiers {
		window, err := time.ParseDuration(tier.Window)
		if err != nil {
			return ratelimiter.Config{}, fmt.Errorf("tiers[%d].window: %w", i, err)
		}
		out.Tiers = append(out.Tiers, ratelimiter.Tier{Window: window, MaxRequests: tier.MaxRequests})
	}
	if err := out.Validate(); err != nil {
		return ratelimiter.Config{}, err
	}
	return out, nil
}

// DelayLog returns the minimum interval between "admission delayed" logs.
// Zero logs every delay. An unset or unparsable value falls back to the
// default interval.
func (c Config) DelayLog() time.Duration {
	d, err := time.ParseDuration(c.DelayLogInterval)
	if err != nil || d < 0 {
		d, _ = time.ParseDuration(defaultDelayLogInterval)
	}
	return d
}
