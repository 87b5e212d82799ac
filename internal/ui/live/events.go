package live

import (
	"time"

	"polibase/pkg/ratelimiter"
)

// EventKind identifies the type of live UI event.
type EventKind int

const (
	// EventAdmit signals a recorded admission.
	EventAdmit EventKind = iota
	// EventWait signals a delayed admission attempt.
	EventWait
	// EventCancel signals an abandoned admission.
	EventCancel
	// EventDone signals the end of the workload.
	EventDone
)

// Event carries a UI update payload.
type Event struct {
	Kind     EventKind
	At       time.Time
	Endpoint string
	Decision ratelimiter.Decision
	Message  string
}
