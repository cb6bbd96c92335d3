// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package retry provides a bounded retry-with-backoff combinator shared
// by the drain worker, the overflow recovery worker, and the synchronous
// history read path.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes a bounded exponential backoff schedule: BaseDelay
// doubles after each failed attempt up to MaxDelay, for at most
// MaxAttempts attempts in total.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Do runs op until it succeeds, returns a non-transient error, or the
// attempt budget is exhausted. transient decides whether an error is
// worth retrying; a nil transient treats every error as transient.
func (p Policy) Do(ctx context.Context, op func() error, transient func(error) bool) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0 // bounded by attempts, not wall time

	attempts := uint64(1)
	if p.MaxAttempts > 1 {
		attempts = uint64(p.MaxAttempts)
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if transient != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx))
}
