// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package field

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultAttempts is the number of attempts per field exchange
const DefaultAttempts = 2

// Retry runs fn up to attempts times, stopping at the first success.
// The context is checked between attempts. The returned error wraps the last
// attempt's error.
func Retry(ctx context.Context, attempts int, logger *slog.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return fmt.Errorf("%s: %w (after %v)", op, ctxErr, err)
			}
			return fmt.Errorf("%s: %w", op, ctxErr)
		}

		err = fn()
		if err == nil {
			return nil
		}
		if logger != nil {
			logger.Debug("field exchange failed", "op", op, "attempt", attempt, "of", attempts, "err", err)
		}
	}
	return fmt.Errorf("%s: %d attempts: %w", op, attempts, err)
}
