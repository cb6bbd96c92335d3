// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/olegiv/cyberguard-go/internal/model"
	"github.com/olegiv/cyberguard-go/internal/retry"
	"github.com/olegiv/cyberguard-go/internal/store"
)

// Drain is the single long-lived consumer of the event queue. It
// processes exactly one event at a time: a slow write for event N
// never lets N+1 overtake it, so submission order becomes a total
// order in the store (or in the overflow log).
type Drain struct {
	queue      *Queue
	serializer *store.Serializer
	overflow   *OverflowLog
	policy     retry.Policy
	log        *slog.Logger
}

// NewDrain creates a drain worker.
func NewDrain(queue *Queue, serializer *store.Serializer, overflow *OverflowLog, policy retry.Policy, logger *slog.Logger) *Drain {
	return &Drain{
		queue:      queue,
		serializer: serializer,
		overflow:   overflow,
		policy:     policy,
		log:        logger,
	}
}

// Run consumes the queue until it is closed and empty, or the context
// is cancelled. It never exits because of a single bad event.
func (d *Drain) Run(ctx context.Context) {
	d.log.Info("drain worker started",
		"max_attempts", d.policy.MaxAttempts,
		"base_delay", d.policy.BaseDelay,
		"max_delay", d.policy.MaxDelay)

	for {
		ev, err := d.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				d.log.Info("drain worker stopped", "reason", "queue closed")
			} else {
				d.log.Info("drain worker stopped", "reason", err)
			}
			return
		}
		d.process(ctx, ev)
	}
}

// process attempts a serialized write with bounded retry and falls
// back to the overflow log when the budget is exhausted or the error
// is not transient. A panic while handling one event is contained
// here so the loop survives.
func (d *Drain) process(ctx context.Context, ev *model.ScanEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("panic while processing scan event",
				"event_id", ev.EventID, "url", ev.URL, "panic", r)
			d.toOverflow(ev)
		}
	}()

	var created model.ScanEvent
	err := d.policy.Do(ctx, func() error {
		return d.serializer.Write(func(q *store.Queries) error {
			var werr error
			created, werr = q.CreateScanEvent(ctx, store.CreateScanEventParams{
				UserID:      ev.UserID,
				URL:         ev.URL,
				Status:      ev.Status,
				ThreatLevel: ev.ThreatLevel,
				Timestamp:   ev.Timestamp,
			})
			return werr
		})
	}, store.IsBusy)

	if err == nil {
		d.log.Debug("scan event committed",
			"event_id", ev.EventID, "id", created.ID, "url", ev.URL)
		return
	}

	d.log.Warn("scan event write failed, moving to overflow log",
		"event_id", ev.EventID, "url", ev.URL, "error", err)
	d.toOverflow(ev)
}

// toOverflow appends the event to the overflow log. An append failure
// here is the only path that can lose an event, so it is logged with
// the full record for manual replay.
func (d *Drain) toOverflow(ev *model.ScanEvent) {
	rec := RecordFromEvent(ev)
	if err := d.overflow.Append(rec); err != nil {
		userID := int64(0)
		if ev.UserID.Valid {
			userID = ev.UserID.Int64
		}
		d.log.Error("failed to append scan event to overflow log",
			"event_id", ev.EventID,
			"url", ev.URL,
			"status", ev.Status,
			"threat_level", ev.ThreatLevel,
			"user_id", userID,
			"timestamp", ev.Timestamp,
			"error", err)
	}
}
