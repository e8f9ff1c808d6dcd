// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/shipdex/core"
)

// RetryPolicy controls per-stage retry behavior: exponential backoff
// with a cap, a bounded attempt count, and short-circuiting on
// non-retryable errors.
type RetryPolicy struct {
	// InitialInterval is the delay before the first retry.
	InitialInterval time.Duration

	// Multiplier grows the delay after each failed attempt.
	Multiplier float64

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// MaxAttempts bounds total attempts, the first included.
	MaxAttempts int
}

// DefaultRetryPolicy returns the standard pipeline policy: 1s initial
// backoff doubling up to 60s, three attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: time.Second,
		Multiplier:      2.0,
		MaxInterval:     60 * time.Second,
		MaxAttempts:     3,
	}
}

// Execute runs an operation under the policy. Non-retryable errors
// (validation, invalid payload, missing references) return immediately;
// retryable ones are reattempted until the budget is exhausted.
// Returns the error from the last attempt if all attempts fail.
func (p RetryPolicy) Execute(ctx context.Context, operation func() error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidRetryPolicy
	}

	interval := p.InitialInterval
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		if !core.IsRetryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry",
			"attempt", attempt, "max_attempts", p.MaxAttempts, "err", lastErr)

		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * p.Multiplier)
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
	}

	return lastErr
}
