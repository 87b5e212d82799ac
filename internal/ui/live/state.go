package live

import (
	"time"

	"polibase/pkg/ratelimiter"
)

// Counts aggregates admission events seen by the dashboard.
type Counts struct {
	Admitted int
	Waits    int
	Canceled int
}

// State captures the dashboard state between renders.
type State struct {
	Title       string
	StartedAt   time.Time
	Status      ratelimiter.Status
	Counts      Counts
	LongestWait time.Duration
	LastEvent   string
	Done        bool
}
