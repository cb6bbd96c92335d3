// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/cyberguard-go/internal/model"
	"github.com/olegiv/cyberguard-go/internal/pipeline"
	"github.com/olegiv/cyberguard-go/internal/retry"
	"github.com/olegiv/cyberguard-go/internal/store"
	"github.com/olegiv/cyberguard-go/internal/util"
)

// HistoryHandler handles the scan history endpoints. Reads share the
// store with the drain worker and retry transient lock errors; writes
// go through the serializer.
type HistoryHandler struct {
	serializer *store.Serializer
	pipeline   *pipeline.Pipeline
	policy     retry.Policy
	highLabels []string
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(serializer *store.Serializer, p *pipeline.Pipeline, policy retry.Policy, highLabels []string) *HistoryHandler {
	return &HistoryHandler{
		serializer: serializer,
		pipeline:   p,
		policy:     policy,
		highLabels: highLabels,
	}
}

// historyItem is the JSON shape of one scan event.
type historyItem struct {
	ID          *int64    `json:"id"`
	UserID      *int64    `json:"user_id"`
	URL         string    `json:"url"`
	Status      string    `json:"status"`
	ThreatLevel string    `json:"threat_level"`
	Timestamp   time.Time `json:"timestamp"`
}

func itemFromEvent(ev model.ScanEvent) historyItem {
	item := historyItem{
		UserID:      util.Int64PtrFromNull(ev.UserID),
		URL:         ev.URL,
		Status:      ev.Status,
		ThreatLevel: ev.ThreatLevel,
		Timestamp:   ev.Timestamp,
	}
	if ev.ID != 0 {
		id := ev.ID
		item.ID = &id
	}
	return item
}

// listResponse is the body of GET /api/history.
type listResponse struct {
	History []historyItem `json:"history"`
	Count   int           `json:"count"`
}

// List handles GET /api/history - all scan events, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var events []model.ScanEvent
	err := h.policy.Do(r.Context(), func() error {
		return h.serializer.Read(func(q *store.Queries) error {
			var rerr error
			events, rerr = q.ListScanEvents(r.Context())
			return rerr
		})
	}, store.IsBusy)
	if err != nil {
		slog.Error("failed to list scan history", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	items := make([]historyItem, 0, len(events))
	for _, ev := range events {
		items = append(items, itemFromEvent(ev))
	}
	writeJSON(w, http.StatusOK, listResponse{History: items, Count: len(items)})
}

// appendRequest is the body of POST /api/history.
type appendRequest struct {
	URL         string `json:"url"`
	Status      string `json:"status"`
	ThreatLevel string `json:"threat_level"`
	UserID      *int64 `json:"user_id"`
}

// Append handles POST /api/history - enqueues a scan event supplied by
// the caller. The acknowledgement carries a null id: the event is
// queued, not yet written.
func (h *HistoryHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}

	if req.Status == "" {
		req.Status = model.StatusSafe
	}
	if req.ThreatLevel == "" {
		req.ThreatLevel = model.ThreatLevelFor(req.Status, h.highLabels)
	}

	h.pipeline.Submit(&pipeline.ScanEventSubmission{
		UserID:      req.UserID,
		URL:         req.URL,
		Status:      req.Status,
		ThreatLevel: req.ThreatLevel,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Added to history",
		"history_item": historyItem{
			UserID:      req.UserID,
			URL:         req.URL,
			Status:      req.Status,
			ThreatLevel: req.ThreatLevel,
			Timestamp:   time.Now().UTC(),
		},
	})
}

// Delete handles DELETE /api/history/{id}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid history id")
		return
	}

	err = h.policy.Do(r.Context(), func() error {
		return h.serializer.Write(func(q *store.Queries) error {
			return q.DeleteScanEvent(r.Context(), id)
		})
	}, store.IsBusy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "History item not found")
			return
		}
		slog.Error("failed to delete history item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete history item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "History item deleted"})
}

// Clear handles DELETE /api/history - removes every scan event.
func (h *HistoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	err := h.policy.Do(r.Context(), func() error {
		return h.serializer.Write(func(q *store.Queries) error {
			return q.DeleteAllScanEvents(r.Context())
		})
	}, store.IsBusy)
	if err != nil {
		slog.Error("failed to clear history", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to clear history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
}
