package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testOverflow(t *testing.T) (*OverflowLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overflow.jsonl")
	return NewOverflowLog(path, slog.New(slog.NewTextHandler(os.Stderr, nil))), path
}

func testRecord(url string) Record {
	return Record{
		EventID:     "ev-" + url,
		URL:         url,
		Status:      "phishing",
		ThreatLevel: "high",
		Timestamp:   time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestOverflowAppendAndSnapshot(t *testing.T) {
	l, _ := testOverflow(t)

	for _, url := range []string{"http://test.example/a", "http://test.example/b"} {
		if err := l.Append(testRecord(url)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, lines, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if lines != 2 || len(records) != 2 {
		t.Fatalf("lines=%d records=%d, want 2/2", lines, len(records))
	}
	if records[0].URL != "http://test.example/a" {
		t.Errorf("first record = %q, want append order preserved", records[0].URL)
	}
	if records[1].EventID != "ev-http://test.example/b" {
		t.Errorf("EventID = %q, did not round-trip", records[1].EventID)
	}
}

func TestOverflowSnapshotMissingFile(t *testing.T) {
	l, _ := testOverflow(t)

	records, lines, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot on missing file failed: %v", err)
	}
	if lines != 0 || len(records) != 0 {
		t.Errorf("lines=%d records=%d, want empty backlog", lines, len(records))
	}
}

func TestOverflowSnapshotSkipsCorruptLines(t *testing.T) {
	l, path := testOverflow(t)

	_ = l.Append(testRecord("http://test.example/good"))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	_, _ = f.WriteString("{this is not json\n")
	_ = f.Close()
	_ = l.Append(testRecord("http://test.example/also-good"))

	records, lines, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if lines != 3 {
		t.Errorf("lines = %d, want 3 raw lines", lines)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want corrupt line skipped", len(records))
	}
}

func TestOverflowRewriteKeepsStillFailing(t *testing.T) {
	l, path := testOverflow(t)

	_ = l.Append(testRecord("http://test.example/recovered"))
	_ = l.Append(testRecord("http://test.example/failing"))

	_, lines, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if err := l.Rewrite(lines, []Record{testRecord("http://test.example/failing")}); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	records, _, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot after rewrite failed: %v", err)
	}
	if len(records) != 1 || records[0].URL != "http://test.example/failing" {
		t.Errorf("records = %+v, want only the still-failing record", records)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "recovered") {
		t.Error("recovered record still present in rewritten log")
	}
}

func TestOverflowRewritePreservesConcurrentAppends(t *testing.T) {
	l, _ := testOverflow(t)

	_ = l.Append(testRecord("http://test.example/old"))
	_, lines, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	// The drain worker appends between snapshot and rewrite.
	_ = l.Append(testRecord("http://test.example/mid-run"))

	if err := l.Rewrite(lines, nil); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	records, _, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(records) != 1 || records[0].URL != "http://test.example/mid-run" {
		t.Errorf("records = %+v, want the mid-run append to wait for the next cycle", records)
	}
}

func TestOverflowRewriteRemovesEmptyFile(t *testing.T) {
	l, path := testOverflow(t)

	_ = l.Append(testRecord("http://test.example/a"))
	_, lines, _ := l.Snapshot()

	if err := l.Rewrite(lines, nil); err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected overflow file to be removed, stat err = %v", err)
	}

	backlog, err := l.Backlog()
	if err != nil {
		t.Fatalf("Backlog failed: %v", err)
	}
	if backlog != 0 {
		t.Errorf("Backlog = %d, want 0", backlog)
	}
}

func TestOverflowRecordUserIDRoundTrip(t *testing.T) {
	l, _ := testOverflow(t)

	uid := int64(7)
	rec := testRecord("http://test.example/user")
	rec.UserID = &uid
	_ = l.Append(rec)

	records, _, err := l.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	params := records[0].CreateParams()
	if !params.UserID.Valid || params.UserID.Int64 != 7 {
		t.Errorf("UserID = %+v, want valid 7", params.UserID)
	}

	anon := testRecord("http://test.example/anon")
	_ = l.Append(anon)
	records, _, _ = l.Snapshot()
	if records[1].CreateParams().UserID.Valid {
		t.Error("anonymous record should produce a null UserID")
	}
}
