// Package storecall bounds every call the services make to the store:
// each attempt gets its own timeout, transient failures are retried with
// exponential backoff, and the final failure is returned to the caller.
package storecall

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/pkordes/easy-carpool/internal/domain"
)

// Defaults used when a Policy field is left at its zero value.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
)

// Policy configures timeouts and retries for store calls.
// The zero value is usable and applies the defaults.
type Policy struct {
	// Timeout caps each individual attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the first backoff interval; it doubles on each retry.
	BaseDelay time.Duration
	// OnRetry, if set, is called with the error of every attempt that is
	// about to be retried.
	OnRetry func(op string, err error)
}

// Do runs fn under the policy. op names the call for OnRetry.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(p.attempts()-1), retry.NewExponential(p.baseDelay()))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout())
		defer cancel()

		err := fn(attemptCtx)
		if err == nil || Permanent(ctx, err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(op, err)
		}
		return retry.RetryableError(err)
	})
}

// Get is Do for calls that return a value.
func Get[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Permanent reports whether err must not be retried: domain outcomes are
// answers, not failures, and a cancelled caller is gone.
func Permanent(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNoSeatsAvailable),
		errors.Is(err, domain.ErrAlreadyRegistered):
		return true
	case ctx.Err() != nil:
		return true
	case errors.Is(err, context.Canceled):
		return true
	}
	return false
}

func (p Policy) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) baseDelay() time.Duration {
	if p.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}
