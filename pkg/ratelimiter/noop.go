package ratelimiter

import (
	"context"
	"time"
)

// NoopAdmitter is an Admitter that admits every request immediately.
var NoopAdmitter Admitter = noopAdmitter{}

// noopAdmitter satisfies Admitter without enforcing limits.
type noopAdmitter struct{}

// AwaitAdmission admits unless ctx has already ended.
func (noopAdmitter) AwaitAdmission(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	return nil
}

// Schedule runs work inline.
func (n noopAdmitter) Schedule(ctx context.Context, endpoint string, _ Priority, work Work) (any, error) {
	if err := n.AwaitAdmission(ctx, endpoint); err != nil {
		return nil, err
	}
	if work == nil {
		return nil, nil
	}
	return work(ctx)
}

// Status reports no tiers.
func (noopAdmitter) Status() Status {
	return Status{At: time.Now()}
}
