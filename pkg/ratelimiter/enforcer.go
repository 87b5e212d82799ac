package ratelimiter

import "time"

// TierWait is the delay one over-quota tier imposes.
type TierWait struct {
	Tier Tier
	Wait time.Duration
}

// Decision is the outcome of one admission check across all tiers.
type Decision struct {
	Allowed bool
	// Wait is the maximum of the blocking tiers' waits.
	Wait time.Duration
	// Binding is the tier that produced Wait. Zero when Allowed.
	Binding Tier
	// Blocked lists every tier at or over its maximum, in configuration order.
	Blocked []TierWait
}

// evaluate computes the admission decision for now against log.
// The caller prunes first when the decision will be acted on.
func evaluate(log *windowLog, tiers []Tier, margin time.Duration, now time.Time) Decision {
	var d Decision
	for _, tier := range tiers {
		ts, full := log.releaseTime(now, tier.Window, tier.MaxRequests)
		if !full {
			continue
		}
		wait := tier.Window - now.Sub(ts) + margin
		if wait < 0 {
			wait = 0
		}
		d.Blocked = append(d.Blocked, TierWait{Tier: tier, Wait: wait})
		if len(d.Blocked) == 1 || wait > d.Wait {
			d.Wait = wait
			d.Binding = tier
		}
	}
	d.Allowed = len(d.Blocked) == 0
	return d
}
