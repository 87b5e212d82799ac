package ratelimiter

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSafetyMargin pads computed waits so the slot is free when the caller re-checks.
const DefaultSafetyMargin = time.Second

// Tier is a single rolling-window quota.
type Tier struct {
	Window      time.Duration `json:"window" yaml:"window"`
	MaxRequests int           `json:"max_requests" yaml:"max_requests"`
}

// String renders a tier as "max/window", e.g. "5/5m0s".
func (t Tier) String() string {
	return fmt.Sprintf("%d/%s", t.MaxRequests, t.Window)
}

// Config is the immutable tier configuration of a Gate.
type Config struct {
	Tiers        []Tier
	SafetyMargin time.Duration
}

// ReferenceTiers returns the per-minute, per-five-minute and per-ten-minute tiers.
// Zero values are skipped.
func ReferenceTiers(perMinute, perFiveMinutes, perTenMinutes int) []Tier {
	tiers := make([]Tier, 0, 3)
	if perMinute > 0 {
		tiers = append(tiers, Tier{Window: time.Minute, MaxRequests: perMinute})
	}
	if perFiveMinutes > 0 {
		tiers = append(tiers, Tier{Window: 5 * time.Minute, MaxRequests: perFiveMinutes})
	}
	if perTenMinutes > 0 {
		tiers = append(tiers, Tier{Window: 10 * time.Minute, MaxRequests: perTenMinutes})
	}
	return tiers
}

// DefaultConfig returns the reference deployment: 100/1m, 5/5m, 10/10m.
func DefaultConfig() Config {
	return Config{
		Tiers:        ReferenceTiers(100, 5, 10),
		SafetyMargin: DefaultSafetyMargin,
	}
}

// Validate reports the first problem with the configuration.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidConfig)
	}
	for i, tier := range c.Tiers {
		if tier.Window <= 0 {
			return fmt.Errorf("%w: tier %d window must be positive", ErrInvalidConfig, i)
		}
		if tier.MaxRequests < 1 {
			return fmt.Errorf("%w: tier %d max_requests must be at least 1", ErrInvalidConfig, i)
		}
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("%w: safety margin must not be negative", ErrInvalidConfig)
	}
	return nil
}

// longestWindow returns the retention horizon for the window log.
func (c Config) longestWindow() time.Duration {
	var longest time.Duration
	for _, tier := range c.Tiers {
		if tier.Window > longest {
			longest = tier.Window
		}
	}
	return longest
}

// RequestRecord is one admitted request.
type RequestRecord struct {
	Timestamp time.Time
	Endpoint  string
}

// Priority orders queued work; higher values drain first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps a priority name to its value.
func ParsePriority(value string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q (expected low|normal|high|critical)", value)
	}
}
