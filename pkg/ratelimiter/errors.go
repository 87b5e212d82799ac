package ratelimiter

import "errors"

var (
	// ErrCanceled is returned when the caller's context ends before admission.
	// The returned error also wraps the context error.
	ErrCanceled = errors.New("ratelimiter: admission canceled")
	// ErrClosed is returned for work submitted to, or still queued in, a shut down scheduler.
	ErrClosed = errors.New("ratelimiter: scheduler closed")
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("ratelimiter: invalid config")
)
