package fsutil

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry runs fn and, if it fails with anything other than an absent path,
// runs it exactly once more after delay. Absent paths are not transient.
func Retry[T any](ctx context.Context, delay time.Duration, fn func() (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := fn()
		if err != nil && IsNotExist(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	v, err := backoff.Retry(ctx, op,
		backoff.WithMaxTries(2),
		backoff.WithBackOff(backoff.NewConstantBackOff(delay)),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return v, perm.Unwrap()
	}
	return v, err
}
