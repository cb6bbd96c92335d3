// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")
var errPermanent = errors.New("permanent failure")

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), func() error {
		calls++
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy(10).Do(context.Background(), func() error {
		calls++
		if calls < 4 {
			return errTransient
		}
		return nil
	}, func(err error) bool { return errors.Is(err, errTransient) })
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return errTransient
	}, func(error) bool { return true })
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fastPolicy(10).Do(context.Background(), func() error {
		calls++
		return errPermanent
	}, func(err error) bool { return errors.Is(err, errTransient) })
	if !errors.Is(err, errPermanent) {
		t.Fatalf("err = %v, want %v", err, errPermanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1: permanent errors must not be retried", calls)
	}
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	calls := 0
	err := fastPolicy(1).Do(context.Background(), func() error {
		calls++
		return errTransient
	}, func(error) bool { return true })
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v, want %v", err, errTransient)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Policy{MaxAttempts: 1000, BaseDelay: 10 * time.Millisecond, MaxDelay: 10 * time.Millisecond}
	err := policy.Do(ctx, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errTransient
	}, func(error) bool { return true })

	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if calls > 3 {
		t.Errorf("calls = %d, want retries to stop shortly after cancellation", calls)
	}
}
