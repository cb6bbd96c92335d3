// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"strings"
	"sync"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Serializer owns the shared database handle and gates every mutation
// behind a process-wide lock. SQLite in WAL mode still reports
// SQLITE_BUSY under concurrent writers; a single write gate removes
// that error class entirely, at the cost of serialized write
// throughput. Writes are off the request path, so that trade is cheap.
//
// Reads may bypass the gate and rely on WAL snapshot isolation; callers
// on the read path retry transient busy errors instead.
type Serializer struct {
	mu      sync.Mutex
	db      *sql.DB
	queries *Queries
}

// NewSerializer wraps a database handle in a write-serializing gate.
func NewSerializer(db *sql.DB) *Serializer {
	return &Serializer{
		db:      db,
		queries: New(db),
	}
}

// Write executes fn under the process-wide write lock. The lock is
// released on every exit path, including a panic inside fn.
func (s *Serializer) Write(fn func(*Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.queries)
}

// Read executes fn without taking the write lock.
func (s *Serializer) Read(fn func(*Queries) error) error {
	return fn(s.queries)
}

// DB returns the underlying handle for health checks.
func (s *Serializer) DB() *sql.DB {
	return s.db
}

// IsBusy reports whether err is a transient SQLite contention error
// (SQLITE_BUSY or SQLITE_LOCKED) that is worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	// The driver sometimes surfaces contention as a plain error string,
	// e.g. from a statement that timed out inside busy_timeout.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}
