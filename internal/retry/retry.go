// Package retry is the project-wide retry policy built on cenkalti/backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds how an operation is retried.
type Policy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsed      time.Duration
}

// DefaultPolicy retries 3 times starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		MaxElapsed:      30 * time.Second,
	}
}

// NotifyFunc is called before each retry sleep.
type NotifyFunc func(err error, wait time.Duration)

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, exhausts the
// policy or ctx is done.
func Do[T any](ctx context.Context, p Policy, op func() (T, error), notify NotifyFunc) (T, error) {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		eb.Multiplier = p.Multiplier
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(eb)}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxAttempts))
	}
	if p.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(backoff.Notify(notify)))
	}

	return backoff.Retry(ctx, op, opts...)
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func() error, notify NotifyFunc) error {
	_, err := Do(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	}, notify)
	return err
}
