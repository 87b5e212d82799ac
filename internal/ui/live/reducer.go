package live

import (
	"fmt"

	"polibase/pkg/ratelimiter"
)

// Reduce applies an admission event to state.
func Reduce(state State, event Event) State {
	switch event.Kind {
	case EventAdmit:
		state.Counts.Admitted++
		state.LastEvent = "admitted " + event.Endpoint
	case EventWait:
		state.Counts.Waits++
		if event.Decision.Wait > state.LongestWait {
			state.LongestWait = event.Decision.Wait
		}
		state.LastEvent = fmt.Sprintf("%s waits %s on %s", event.Endpoint, formatDuration(event.Decision.Wait), event.Decision.Binding)
	case EventCancel:
		state.Counts.Canceled++
		state.LastEvent = "canceled " + event.Endpoint
	case EventDone:
		state.Done = true
		if event.Message != "" {
			state.LastEvent = event.Message
		}
	}
	return state
}

// ApplyStatus replaces the polled gate snapshot.
func ApplyStatus(state State, status ratelimiter.Status) State {
	state.Status = status
	if state.StartedAt.IsZero() {
		state.StartedAt = status.At
	}
	return state
}
