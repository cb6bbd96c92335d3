// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/cyberguard-go/internal/retry"
	"github.com/olegiv/cyberguard-go/internal/store"
)

// Options configures the write pipeline.
type Options struct {
	OverflowPath     string
	DrainPolicy      retry.Policy
	RecoveryPolicy   retry.Policy
	RecoveryInterval time.Duration
}

// Pipeline owns the queue, the drain worker, the overflow log and the
// scheduled recovery worker, and ties their lifecycles together.
type Pipeline struct {
	queue    *Queue
	overflow *OverflowLog
	drain    *Drain
	recovery *Recovery
	cron     *cron.Cron
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New wires a pipeline around the given serializer.
func New(serializer *store.Serializer, opts Options, logger *slog.Logger) *Pipeline {
	queue := NewQueue()
	overflow := NewOverflowLog(opts.OverflowPath, logger)

	cl := cronLogger{log: logger}
	return &Pipeline{
		queue:    queue,
		overflow: overflow,
		drain:    NewDrain(queue, serializer, overflow, opts.DrainPolicy, logger),
		recovery: NewRecovery(serializer, overflow, opts.RecoveryPolicy, logger),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
		log:  logger,
		done: make(chan struct{}),
	}
}

// Start launches the drain worker goroutine and schedules the recovery
// worker at the given interval.
func (p *Pipeline) Start(interval time.Duration) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		defer close(p.done)
		p.drain.Run(ctx)
	}()

	_, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := p.recovery.Run(ctx); err != nil {
			p.log.Error("overflow recovery run failed", "error", err)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("scheduling recovery worker: %w", err)
	}
	p.cron.Start()

	p.log.Info("scan event pipeline started", "recovery_interval", interval)
	return nil
}

// Submit stamps the event with its submission time and a trace id,
// then enqueues it. Fire-and-forget: the caller gets no write result.
// If the queue has already closed during shutdown the event goes
// straight to the overflow log so it is not lost.
func (p *Pipeline) Submit(ev *ScanEventSubmission) {
	event := ev.toEvent()
	if err := p.queue.Submit(event); err != nil {
		p.log.Warn("queue closed, writing submission to overflow log",
			"event_id", event.EventID, "url", event.URL)
		if aerr := p.overflow.Append(RecordFromEvent(event)); aerr != nil {
			p.log.Error("failed to persist late submission",
				"event_id", event.EventID, "url", event.URL, "error", aerr)
		}
	}
}

// Stop shuts the pipeline down: the recovery schedule stops first,
// then the queue closes and the drain worker gets up to timeout to
// flush what is left. Events still unwritten when the timeout fires
// are pushed to the overflow log by the cancelled writes themselves.
func (p *Pipeline) Stop(timeout time.Duration) {
	cronCtx := p.cron.Stop()
	<-cronCtx.Done()

	p.queue.Close()
	select {
	case <-p.done:
	case <-time.After(timeout):
		p.log.Warn("drain worker did not flush in time, cancelling", "timeout", timeout)
		p.cancel()
		<-p.done
	}
	p.cancel()
	p.log.Info("scan event pipeline stopped")
}

// QueueDepth returns the number of events waiting in the queue.
func (p *Pipeline) QueueDepth() int {
	return p.queue.Len()
}

// OverflowBacklog returns the number of records in the overflow log.
func (p *Pipeline) OverflowBacklog() (int, error) {
	return p.overflow.Backlog()
}

// RunRecoveryNow triggers one reconciliation pass outside the
// schedule. Used by tests and the readiness probe.
func (p *Pipeline) RunRecoveryNow(ctx context.Context) error {
	return p.recovery.Run(ctx)
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
