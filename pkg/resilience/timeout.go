// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/jllopis/flowgate/pkg/errors"
)

// WithTimeout runs fn with a context bounded by d. A zero d disables the
// bound. fn must honour ctx; if it returns after the deadline the result is
// replaced by a recoverable CodeTimeout error.
func WithTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case <-ctx.Done():
		return timeoutError(ctx, d)
	case err := <-done:
		if err != nil && ctx.Err() == context.DeadlineExceeded {
			return timeoutError(ctx, d)
		}
		return err
	}
}

func timeoutError(ctx context.Context, d time.Duration) error {
	if ctx.Err() == context.Canceled {
		return errors.New(errors.CodeContextLost, "operation canceled", ctx.Err())
	}
	return errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
		WithContext("timeout", d.String()).
		WithRecoverable(true)
}
