// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package pipeline implements the asynchronous write path for scan
// events: an unbounded FIFO queue fed by request handlers, a single
// drain worker writing through the store's serializer, a JSONL
// overflow log for writes that exhaust their retry budget, and a
// periodic recovery worker replaying the overflow log into the store.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/olegiv/cyberguard-go/internal/model"
)

// ErrQueueClosed is returned by Submit and Take after Close.
var ErrQueueClosed = errors.New("pipeline: queue closed")

// Queue is the unbounded in-memory FIFO between request-handling
// goroutines and the drain worker. Submit never blocks. Take is meant
// for a single consumer; the queue converts N concurrent producers
// into one sequential writer, which is what keeps SQLite happy.
type Queue struct {
	mu     sync.Mutex
	items  []*model.ScanEvent
	wake   chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Submit appends an event to the queue and returns immediately.
// Returns ErrQueueClosed once the queue has been closed.
func (q *Queue) Submit(ev *model.ScanEvent) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Take blocks until an event is available, the context is cancelled,
// or the queue is closed and fully drained. Events are returned in
// strict submission order.
func (q *Queue) Take(ctx context.Context) (*model.ScanEvent, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return ev, nil
		}
		closed := q.closed
		q.mu.Unlock()

		// Items already queued are still handed out after Close; only
		// an empty closed queue reports ErrQueueClosed.
		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		}
	}
}

// Close marks the queue closed and wakes the consumer. Queued events
// remain takeable until the queue is empty.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
