// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/olegiv/cyberguard-go/internal/model"
	"github.com/olegiv/cyberguard-go/internal/store"
	"github.com/olegiv/cyberguard-go/internal/util"
)

// Record is the pre-insert shape of a scan event as stored in the
// overflow log, one JSON object per line.
type Record struct {
	EventID     string    `json:"event_id,omitempty"`
	UserID      *int64    `json:"user_id"`
	URL         string    `json:"url"`
	Status      string    `json:"status"`
	ThreatLevel string    `json:"threat_level"`
	Timestamp   time.Time `json:"timestamp"`
}

// RecordFromEvent converts a scan event to its overflow shape.
func RecordFromEvent(ev *model.ScanEvent) Record {
	return Record{
		EventID:     ev.EventID,
		UserID:      util.Int64PtrFromNull(ev.UserID),
		URL:         ev.URL,
		Status:      ev.Status,
		ThreatLevel: ev.ThreatLevel,
		Timestamp:   ev.Timestamp,
	}
}

// CreateParams converts an overflow record back to insert parameters.
func (r Record) CreateParams() store.CreateScanEventParams {
	return store.CreateScanEventParams{
		UserID:      util.NullInt64FromPtr(r.UserID),
		URL:         r.URL,
		Status:      r.Status,
		ThreatLevel: r.ThreatLevel,
		Timestamp:   r.Timestamp,
	}
}

// OverflowLog is the append-only JSONL fallback used when the store
// rejects a write after retries. The drain worker appends; the
// recovery worker snapshots and rewrites. A single mutex keeps the two
// file-mutating sections from interleaving.
type OverflowLog struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

// NewOverflowLog creates an overflow log rooted at path. The file is
// created lazily on first append.
func NewOverflowLog(path string, logger *slog.Logger) *OverflowLog {
	return &OverflowLog{path: path, log: logger}
}

// Append writes one record as a JSON line at the end of the log.
func (l *OverflowLog) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating overflow directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening overflow log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("writing overflow record: %w", err)
	}
	return f.Sync()
}

// Snapshot parses every line of the log and returns the records along
// with the raw line count at the time of the read. Corrupt lines are
// logged and skipped; they are not fatal. A missing file means an
// empty backlog.
func (l *OverflowLog) Snapshot() ([]Record, int, error) {
	l.mu.Lock()
	lines, err := l.readLines()
	l.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}

	records := make([]Record, 0, len(lines))
	for i, line := range lines {
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			l.log.Warn("skipping corrupt overflow record",
				"line", i+1, "content", string(line), "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, len(lines), nil
}

// Rewrite replaces the first snapshotLines lines of the log with keep,
// preserving any lines appended after the snapshot was taken (those
// wait one extra recovery cycle). Corrupt lines within the snapshot
// window are dropped here; Snapshot already logged them. The file is
// replaced atomically and removed when nothing remains.
func (l *OverflowLog) Rewrite(snapshotLines int, keep []Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := l.readLines()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range keep {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding overflow record: %w", err)
		}
	}
	if snapshotLines < len(lines) {
		for _, line := range lines[snapshotLines:] {
			buf.Write(line)
			buf.WriteByte('\n')
		}
	}

	if buf.Len() == 0 {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing empty overflow log: %w", err)
		}
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating overflow temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing overflow temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("syncing overflow temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing overflow temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing overflow log: %w", err)
	}
	return nil
}

// Backlog returns the number of lines currently in the log.
func (l *OverflowLog) Backlog() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lines, err := l.readLines()
	if err != nil {
		return 0, err
	}
	return len(lines), nil
}

// readLines returns the raw non-empty lines of the log file.
// Callers hold l.mu.
func (l *OverflowLog) readLines() ([][]byte, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening overflow log: %w", err)
	}
	defer f.Close()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading overflow log: %w", err)
	}
	return lines, nil
}
