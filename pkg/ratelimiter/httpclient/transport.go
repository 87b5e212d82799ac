// Package httpclient wires an admission gate into net/http.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"polibase/pkg/ratelimiter"
)

// Transport is an http.RoundTripper that waits for admission before every
// outbound request.
type Transport struct {
	// Base performs the request once admitted. Nil means http.DefaultTransport.
	Base http.RoundTripper
	// Admitter decides when a request may go out.
	Admitter ratelimiter.Admitter
	// Key maps a request to its endpoint key. Nil means EndpointKey.
	Key func(*http.Request) string
}

// New returns a Transport that admits through a and delegates to base.
func New(a ratelimiter.Admitter, base http.RoundTripper) *Transport {
	return &Transport{Base: base, Admitter: a}
}

// NewClient returns an http.Client whose requests pass through a.
func NewClient(a ratelimiter.Admitter, timeout time.Duration) *http.Client {
	return &http.Client{Transport: New(a, nil), Timeout: timeout}
}

// RoundTrip admits req, then performs it. Requests whose context carries a
// priority are queued through the scheduler instead.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := t.key(req)

	priority, ok := PriorityFrom(ctx)
	if !ok {
		if err := t.Admitter.AwaitAdmission(ctx, endpoint); err != nil {
			return nil, closeBody(req, err)
		}
		return t.base().RoundTrip(req)
	}

	value, err := t.Admitter.Schedule(ctx, endpoint, priority, func(ctx context.Context) (any, error) {
		resp, err := t.base().RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			resp.Body.Close()
			return nil, ctxErr
		}
		return resp, nil
	})
	if err != nil {
		return nil, closeBody(req, err)
	}
	resp, ok := value.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("httpclient: scheduled request for %s returned %T", endpoint, value)
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) key(req *http.Request) string {
	if t.Key != nil {
		return t.Key(req)
	}
	return EndpointKey(req)
}

// closeBody honours the RoundTripper contract of closing the request body on error.
func closeBody(req *http.Request, err error) error {
	if req.Body != nil {
		req.Body.Close()
	}
	return err
}

type priorityKey struct{}

// WithPriority marks requests made with ctx for scheduled delivery at p.
func WithPriority(ctx context.Context, p ratelimiter.Priority) context.Context {
	return context.WithValue(ctx, priorityKey{}, p)
}

// PriorityFrom returns the priority set by WithPriority.
func PriorityFrom(ctx context.Context) (ratelimiter.Priority, bool) {
	p, ok := ctx.Value(priorityKey{}).(ratelimiter.Priority)
	return p, ok
}

// EndpointKey formats "METHOD /path" with identifier segments collapsed,
// e.g. "GET /videos/{id}/transcript".
func EndpointKey(req *http.Request) string {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	path := "/"
	if req.URL != nil {
		path = normalizePath(req.URL.Path)
	}
	return fmt.Sprintf("%s %s", method, path)
}

func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	kept := segments[:0]
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if isIdentifier(segment) {
			segment = "{id}"
		}
		kept = append(kept, segment)
	}
	return "/" + strings.Join(kept, "/")
}

func isIdentifier(segment string) bool {
	if _, err := strconv.ParseUint(segment, 10, 64); err == nil {
		return true
	}
	_, err := uuid.Parse(segment)
	return err == nil
}
