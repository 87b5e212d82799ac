package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"polibase/internal/config"
	"polibase/pkg/ratelimiter"
)

// BuildAdmitter constructs the admitter described by cfg. Disabled mode
// returns ratelimiter.NoopAdmitter.
func BuildAdmitter(cfg config.Config, logger *zap.Logger, opts ...ratelimiter.Option) (ratelimiter.Admitter, error) {
	if !cfg.Enabled() {
		return ratelimiter.NoopAdmitter, nil
	}
	return BuildGate(cfg, 1, logger, opts...)
}

// BuildGate constructs a gate with every tier window multiplied by scale.
// Simulations use a scale below 1 to compress minutes into seconds.
func BuildGate(cfg config.Config, scale float64, logger *zap.Logger, opts ...ratelimiter.Option) (*ratelimiter.Gate, error) {
	limits, err := cfg.Limiter()
	if err != nil {
		return nil, err
	}
	limits, err = Scale(limits, scale)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []ratelimiter.Option{
		ratelimiter.WithLogger(logger.Named("ratelimiter")),
		ratelimiter.WithDelayLogInterval(cfg.DelayLog()),
	}
	gate, err := ratelimiter.New(limits, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("build gate: %w", err)
	}
	logger.Info("admission gate ready",
		zap.Stringers("tiers", gate.Tiers()),
		zap.Duration("safety_margin", limits.SafetyMargin),
	)
	return gate, nil
}

// Scale multiplies every window and the safety margin by factor.
func Scale(cfg ratelimiter.Config, factor float64) (ratelimiter.Config, error) {
	if factor <= 0 {
		return ratelimiter.Config{}, fmt.Errorf("%w: scale must be positive, got %g", ratelimiter.ErrInvalidConfig, factor)
	}
	if factor == 1 {
		return cfg, nil
	}
	out := ratelimiter.Config{SafetyMargin: scaleDuration(cfg.SafetyMargin, factor)}
	for _, tier := range cfg.Tiers {
		window := scaleDuration(tier.Window, factor)
		if window <= 0 {
			window = time.Millisecond
		}
		out.Tiers = append(out.Tiers, ratelimiter.Tier{Window: window, MaxRequests: tier.MaxRequests})
	}
	return out, out.Validate()
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

// Shutdown stops a's scheduler when it has one.
func Shutdown(ctx context.Context, a ratelimiter.Admitter) error {
	if gate, ok := a.(*ratelimiter.Gate); ok {
		return gate.Shutdown(ctx)
	}
	return nil
}
