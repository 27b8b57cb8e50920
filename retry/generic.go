package retry

import "context"

// DoWithResult is a type-safe generic wrapper around Retryer.Do for
// operations that produce a value. It eliminates the need for captured
// result variables at call sites.
//
// Usage:
//
//	text, err := retry.DoWithResult(r, ctx, func() (string, error) {
//	    return invoke()
//	})
func DoWithResult[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func() error {
		var ferr error
		result, ferr = fn()
		return ferr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
