// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"log/slog"

	"github.com/olegiv/cyberguard-go/internal/retry"
	"github.com/olegiv/cyberguard-go/internal/store"
)

// Recovery replays overflow-log records into the store. Each run
// snapshots the log, attempts a bounded-retry write per record, and
// rewrites the log with only the records that still failed. Records
// appended by the drain worker mid-run are preserved for the next
// cycle; the snapshot/rewrite split means no lock is held across the
// replay itself.
type Recovery struct {
	serializer *store.Serializer
	overflow   *OverflowLog
	policy     retry.Policy
	log        *slog.Logger
}

// NewRecovery creates a recovery worker.
func NewRecovery(serializer *store.Serializer, overflow *OverflowLog, policy retry.Policy, logger *slog.Logger) *Recovery {
	return &Recovery{
		serializer: serializer,
		overflow:   overflow,
		policy:     policy,
		log:        logger,
	}
}

// Run performs one reconciliation pass.
func (r *Recovery) Run(ctx context.Context) error {
	records, snapshotLines, err := r.overflow.Snapshot()
	if err != nil {
		return err
	}
	if snapshotLines == 0 {
		return nil
	}

	r.log.Info("replaying overflow log", "records", len(records))

	var failed []Record
	recovered := 0
	for _, rec := range records {
		if err := r.replay(ctx, rec); err != nil {
			r.log.Warn("overflow record still failing",
				"event_id", rec.EventID, "url", rec.URL, "error", err)
			failed = append(failed, rec)
			continue
		}
		recovered++
	}

	if err := r.overflow.Rewrite(snapshotLines, failed); err != nil {
		return err
	}

	r.log.Info("overflow reconciliation finished",
		"recovered", recovered, "still_failing", len(failed))
	return nil
}

// replay writes a single overflow record through the serializer.
func (r *Recovery) replay(ctx context.Context, rec Record) error {
	return r.policy.Do(ctx, func() error {
		return r.serializer.Write(func(q *store.Queries) error {
			_, err := q.CreateScanEvent(ctx, rec.CreateParams())
			return err
		})
	}, store.IsBusy)
}
