package cli

import (
	"sync"
	"time"

	"polibase/pkg/ratelimiter"
)

// simulationStats counts admission events during a simulation.
type simulationStats struct {
	mu          sync.Mutex
	admitted    int
	waits       int
	canceled    int
	longestWait time.Duration
	binding     map[ratelimiter.Tier]int
}

type statsSnapshot struct {
	admitted    int
	waits       int
	canceled    int
	longestWait time.Duration
	binding     map[ratelimiter.Tier]int
}

func newSimulationStats() *simulationStats {
	return &simulationStats{binding: map[ratelimiter.Tier]int{}}
}

func (s *simulationStats) OnAdmit(ratelimiter.RequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admitted++
}

func (s *simulationStats) OnWait(_ string, d ratelimiter.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits++
	s.binding[d.Binding]++
	if d.Wait > s.longestWait {
		s.longestWait = d.Wait
	}
}

func (s *simulationStats) OnCancel(string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled++
}

func (s *simulationStats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding := make(map[ratelimiter.Tier]int, len(s.binding))
	for tier, n := range s.binding {
		binding[tier] = n
	}
	return statsSnapshot{
		admitted:    s.admitted,
		waits:       s.waits,
		canceled:    s.canceled,
		longestWait: s.longestWait,
		binding:     binding,
	}
}
