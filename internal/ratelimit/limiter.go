package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/okarlsson/waitgate/pkg/metrics"
)

// Fixed parameters for the public join surface: 100 requests per rolling
// 60-second window, keyed by API credential. The credential is the unit of
// tenancy; caller IPs are deliberately not part of the key.
const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

const keyPrefix = "ratelimit:"

// Decision is the outcome of a single limiter consultation.
type Decision struct {
	Allowed   bool
	Remaining int
}

// Limiter implements a fixed-window counter per credential. The window is not
// a sliding log: a burst of up to 2x the limit can pass across a window
// boundary. That trade-off is inherited from the original design and kept for
// its simplicity; tightening it would need a sliding log or token bucket.
type Limiter struct {
	windows WindowStore
	limit   int
	window  time.Duration
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithLimit overrides the per-window request budget.
func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithWindow overrides the window length.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// NewLimiter constructs a Limiter over the supplied window store.
func NewLimiter(windows WindowStore, opts ...Option) (*Limiter, error) {
	if windows == nil {
		return nil, errors.New("ratelimit: window store is required")
	}

	l := &Limiter{
		windows: windows,
		limit:   DefaultLimit,
		window:  DefaultWindow,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow consults and consumes the budget for one request from the credential.
func (l *Limiter) Allow(ctx context.Context, credential string) (Decision, error) {
	if l == nil {
		return Decision{}, errors.New("ratelimit: limiter not initialised")
	}

	allowed, remaining, err := l.windows.Take(ctx, keyPrefix+credential, l.limit, l.window)
	if err != nil {
		return Decision{}, err
	}

	if !allowed {
		metrics.RateLimitRejections.Inc()
	}

	return Decision{Allowed: allowed, Remaining: remaining}, nil
}

// Limit reports the configured per-window budget.
func (l *Limiter) Limit() int { return l.limit }

// Window reports the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }
