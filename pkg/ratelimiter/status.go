package ratelimiter

import "time"

// TierStatus is the usage of one tier at a point in time.
type TierStatus struct {
	Tier  Tier
	Count int
}

// Max returns the tier's configured maximum.
func (s TierStatus) Max() int {
	return s.Tier.MaxRequests
}

// AtLimit reports whether the next request would be delayed by this tier.
func (s TierStatus) AtLimit() bool {
	return s.Count >= s.Tier.MaxRequests
}

// PercentUsed returns Count/Max as a percentage.
func (s TierStatus) PercentUsed() float64 {
	if s.Tier.MaxRequests <= 0 {
		return 0
	}
	return float64(s.Count) / float64(s.Tier.MaxRequests) * 100
}

// Status is a read-only snapshot of the gate.
type Status struct {
	At    time.Time
	Tiers []TierStatus
	// Queued is the number of scheduled requests not yet dequeued.
	Queued int
	// Draining reports whether a drain loop is active.
	Draining bool
}

// AtLimit reports whether any tier is at its maximum.
func (s Status) AtLimit() bool {
	for _, tier := range s.Tiers {
		if tier.AtLimit() {
			return true
		}
	}
	return false
}

// PercentUsed returns the highest per-tier usage percentage.
func (s Status) PercentUsed() float64 {
	var highest float64
	for _, tier := range s.Tiers {
		if p := tier.PercentUsed(); p > highest {
			highest = p
		}
	}
	return highest
}
