package ratelimiter

import "context"

// Admitter is the admission API consumed by the network layer.
type Admitter interface {
	AwaitAdmission(ctx context.Context, endpoint string) error
	Schedule(ctx context.Context, endpoint string, priority Priority, work Work) (any, error)
	Status() Status
}

var _ Admitter = (*Gate)(nil)

// Do schedules typed work through a and returns its typed result.
func Do[T any](ctx context.Context, a Admitter, endpoint string, priority Priority, work func(ctx context.Context) (T, error)) (T, error) {
	value, err := a.Schedule(ctx, endpoint, priority, func(ctx context.Context) (any, error) {
		return work(ctx)
	})
	typed, _ := value.(T)
	return typed, err
}
