package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Notify, if set, is called before every retry with the conflict that caused it.
	Notify func(err error, next time.Duration)
}

// IsSerializationFailure reports whether err is a postgres conflict that is
// safe to resolve by re-running the whole transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

// Retry runs fn until it succeeds, fails with an error rejected by isConflict,
// or policy.MaxAttempts is exhausted. In the last case the final conflict error is returned.
func Retry(ctx context.Context, policy RetryPolicy, isConflict func(error) bool, fn func(ctx context.Context) error) error {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	if policy.Backoff > 0 {
		b.InitialInterval = policy.Backoff
		b.MaxInterval = 10 * policy.Backoff
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
	}
	if policy.Notify != nil {
		opts = append(opts, backoff.WithNotify(policy.Notify))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && !isConflict(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	return err
}
