// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store provides SQLite-backed persistence for scan events.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/olegiv/cyberguard-go/internal/model"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by Queries.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds prepared access to the scan_history table.
type Queries struct {
	db DBTX
}

// New creates a Queries instance bound to the given database handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateScanEventParams holds the pre-insert shape of a scan event.
type CreateScanEventParams struct {
	UserID      sql.NullInt64
	URL         string
	Status      string
	ThreatLevel string
	Timestamp   time.Time
}

const createScanEvent = `
INSERT INTO scan_history (user_id, url, status, threat_level, timestamp)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

// CreateScanEvent inserts a scan event and returns it with the
// store-assigned id.
func (q *Queries) CreateScanEvent(ctx context.Context, arg CreateScanEventParams) (model.ScanEvent, error) {
	ev := model.ScanEvent{
		UserID:      arg.UserID,
		URL:         arg.URL,
		Status:      arg.Status,
		ThreatLevel: arg.ThreatLevel,
		Timestamp:   arg.Timestamp,
	}
	row := q.db.QueryRowContext(ctx, createScanEvent,
		arg.UserID, arg.URL, arg.Status, arg.ThreatLevel, arg.Timestamp)
	if err := row.Scan(&ev.ID); err != nil {
		return model.ScanEvent{}, err
	}
	return ev, nil
}

const listScanEvents = `
SELECT id, user_id, url, status, threat_level, timestamp
FROM scan_history
ORDER BY timestamp DESC, id DESC
`

// ListScanEvents returns all scan events, newest first. Events sharing a
// timestamp are ordered by descending id so the listing stays stable.
func (q *Queries) ListScanEvents(ctx context.Context) ([]model.ScanEvent, error) {
	rows, err := q.db.QueryContext(ctx, listScanEvents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ScanEvent
	for rows.Next() {
		var ev model.ScanEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.URL, &ev.Status, &ev.ThreatLevel, &ev.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

const countScanEvents = `SELECT COUNT(*) FROM scan_history`

// CountScanEvents returns the number of stored scan events.
func (q *Queries) CountScanEvents(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countScanEvents).Scan(&count)
	return count, err
}

const getScanEvent = `
SELECT id, user_id, url, status, threat_level, timestamp
FROM scan_history
WHERE id = ?
`

// GetScanEvent returns a single scan event by id.
// Returns sql.ErrNoRows if the id does not exist.
func (q *Queries) GetScanEvent(ctx context.Context, id int64) (model.ScanEvent, error) {
	var ev model.ScanEvent
	row := q.db.QueryRowContext(ctx, getScanEvent, id)
	err := row.Scan(&ev.ID, &ev.UserID, &ev.URL, &ev.Status, &ev.ThreatLevel, &ev.Timestamp)
	return ev, err
}

const deleteScanEvent = `DELETE FROM scan_history WHERE id = ?`

// DeleteScanEvent removes a single scan event by id.
// Returns sql.ErrNoRows if the id does not exist.
func (q *Queries) DeleteScanEvent(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteScanEvent, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const deleteAllScanEvents = `DELETE FROM scan_history`

// DeleteAllScanEvents removes every scan event. Irreversible.
func (q *Queries) DeleteAllScanEvents(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllScanEvents)
	return err
}
