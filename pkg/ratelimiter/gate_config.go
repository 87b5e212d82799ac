package ratelimiter

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultDelayLogInterval = 10 * time.Second

// gateOptions overrides gate behavior for tests or tuning.
type gateOptions struct {
	clock            clockwork.Clock
	logger           *zap.Logger
	observer         Observer
	delayLogInterval time.Duration
}

// Option configures a Gate.
type Option func(*gateOptions)

// defaultGateOptions returns the production defaults.
func defaultGateOptions() gateOptions {
	return gateOptions{
		clock:            clockwork.NewRealClock(),
		logger:           zap.NewNop(),
		observer:         noopObserver{},
		delayLogInterval: defaultDelayLogInterval,
	}
}

// WithClock sets the time source used for timestamps and waits.
func WithClock(clock clockwork.Clock) Option {
	return func(o *gateOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *gateOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an admission observer.
func WithObserver(observer Observer) Option {
	return func(o *gateOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithDelayLogInterval sets the minimum interval between "admission delayed"
// log lines. Zero logs every delay; negative values are ignored.
func WithDelayLogInterval(interval time.Duration) Option {
	return func(o *gateOptions) {
		if interval >= 0 {
			o.delayLogInterval = interval
		}
	}
}

// delayLimiter throttles delay logs to one per interval, or logs all of them
// for a zero interval.
func delayLimiter(interval time.Duration) rate.Sometimes {
	if interval == 0 {
		return rate.Sometimes{Every: 1}
	}
	return rate.Sometimes{Interval: interval}
}
