package model

import (
	"database/sql"
	"strings"
	"time"
)

// Classification labels produced by the classifier strategies.
const (
	StatusSafe      = "safe"
	StatusBenign    = "benign"
	StatusPhishing  = "phishing"
	StatusMalicious = "malicious"
)

// Threat levels derived from the classification status.
const (
	ThreatLevelHigh = "high"
	ThreatLevelLow  = "low"
)

// ScanEvent represents one URL classification occurrence.
// ID is assigned by the store on insert and is zero before then.
// EventID is assigned at submission time and survives a trip through
// the overflow log, so a single occurrence can be traced across retries.
type ScanEvent struct {
	ID          int64
	EventID     string
	UserID      sql.NullInt64
	URL         string
	Status      string
	ThreatLevel string
	Timestamp   time.Time
}

// ThreatLevelFor derives the threat level from a classification status.
// The status is matched case-insensitively against the configured
// high-severity labels.
func ThreatLevelFor(status string, highLabels []string) string {
	lower := strings.ToLower(status)
	for _, label := range highLabels {
		if lower == strings.ToLower(label) {
			return ThreatLevelHigh
		}
	}
	return ThreatLevelLow
}
