// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/cyberguard-go/internal/model"
	"github.com/olegiv/cyberguard-go/internal/util"
)

// ScanEventSubmission is what the endpoints hand to the pipeline: the
// pre-insert fields of a scan event, before stamping.
type ScanEventSubmission struct {
	UserID      *int64
	URL         string
	Status      string
	ThreatLevel string
}

// toEvent stamps the submission with its trace id and submission-time
// timestamp. Assigning the timestamp here (rather than at commit)
// keeps listings sorted by true request order even when an event takes
// the overflow/recovery detour.
func (s *ScanEventSubmission) toEvent() *model.ScanEvent {
	return &model.ScanEvent{
		EventID:     uuid.NewString(),
		UserID:      util.NullInt64FromPtr(s.UserID),
		URL:         s.URL,
		Status:      s.Status,
		ThreatLevel: s.ThreatLevel,
		Timestamp:   time.Now().UTC(),
	}
}
