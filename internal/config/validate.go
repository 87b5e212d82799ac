package config

import (
	"fmt"
	"strings"
	"time"
)

// Issue captures a validation problem with a config field.
type Issue struct {
	Field   string
	Message string
}

// ValidationError aggregates config validation issues.
type ValidationError struct {
	Issues []Issue
}

// Error renders validation errors as a multi-line string.
func (err *ValidationError) Error() string {
	if err == nil || len(err.Issues) == 0 {
		return "config validation failed"
	}
	lines := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		lines = append(lines, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

// issueCollector accumulates validation issues.
type issueCollector struct {
	issues []Issue
}

func (c *issueCollector) add(field, message string) {
	c.issues = append(c.issues, Issue{Field: field, Message: message})
}

func (c *issueCollector) result() error {
	if len(c.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: c.issues}
}

// Validate checks a normalized config.
func Validate(cfg *Config) error {
	var c issueCollector

	switch cfg.Mode {
	case ModeEnabled, ModeDisabled:
	default:
		c.add("mode", "must be one of enabled, disabled")
	}
	if d, err := time.ParseDuration(cfg.SafetyMargin); err != nil {
		c.add("safety_margin", fmt.Sprintf("invalid duration %q", cfg.SafetyMargin))
	} else if d < 0 {
		c.add("safety_margin", "must be >= 0")
	}
	if d, err := time.ParseDuration(cfg.DelayLogInterval); err != nil {
		c.add("delay_log_interval", fmt.Sprintf("invalid duration %q", cfg.DelayLogInterval))
	} else if d < 0 {
		c.add("delay_log_interval", "must be >= 0")
	}

	if len(cfg.Tiers) > 0 && hasReferenceOptions(*cfg) {
		c.add("tiers", "cannot be combined with max_requests_per_* options")
	}
	for field, value := range map[string]int{
		"max_requests_per_minute":       cfg.MaxRequestsPerMinute,
		"max_requests_per_five_minutes": cfg.MaxRequestsPerFiveMinutes,
		"max_requests_per_ten_minutes":  cfg.MaxRequestsPerTenMinutes,
	} {
		if value < 0 {
			c.add(field, "must be >= 0")
		}
	}
	for i, tier := range cfg.Tiers {
		prefix := fmt.Sprintf("tiers[%d]", i)
		if d, err := time.ParseDuration(tier.Window); err != nil {
			c.add(prefix+".window", fmt.Sprintf("invalid duration %q", tier.Window))
		} else if d <= 0 {
			c.add(prefix+".window", "must be > 0")
		}
		if tier.MaxRequests < 1 {
			c.add(prefix+".max_requests", "must be >= 1")
		}
	}
	return c.result()
}
