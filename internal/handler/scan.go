// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/cyberguard-go/internal/cache"
	"github.com/olegiv/cyberguard-go/internal/classify"
	"github.com/olegiv/cyberguard-go/internal/model"
	"github.com/olegiv/cyberguard-go/internal/pipeline"
)

// ScanHandler handles the URL prediction endpoints.
type ScanHandler struct {
	classifier classify.Classifier
	pipeline   *pipeline.Pipeline
	cache      cache.Cache
	cacheTTL   time.Duration
	highLabels []string
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(classifier classify.Classifier, p *pipeline.Pipeline, c cache.Cache, cacheTTL time.Duration, highLabels []string) *ScanHandler {
	return &ScanHandler{
		classifier: classifier,
		pipeline:   p,
		cache:      c,
		cacheTTL:   cacheTTL,
		highLabels: highLabels,
	}
}

// predictRequest is the body of both prediction endpoints.
type predictRequest struct {
	URL string `json:"url"`
}

// predictResponse is the verdict returned to the caller. It is also
// the shape memoized in the verdict cache.
type predictResponse struct {
	Prediction  string `json:"prediction"`
	ThreatLevel string `json:"threat_level"`
}

// Predict handles POST /predict - classifies a URL and records the
// scan event. The event submission is fire-and-forget: the response
// never waits on, or reports, storage.
func (h *ScanHandler) Predict(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	verdict := h.classify(r, req.URL)

	h.pipeline.Submit(&pipeline.ScanEventSubmission{
		URL:         req.URL,
		Status:      verdict.Prediction,
		ThreatLevel: verdict.ThreatLevel,
	})

	writeJSON(w, http.StatusOK, verdict)
}

// PredictPublic handles POST /predict_public - classifies a URL for
// unauthenticated clients without recording anything.
func (h *ScanHandler) PredictPublic(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	verdict := h.classify(r, req.URL)

	slog.Debug("public prediction served",
		"url", req.URL, "prediction", verdict.Prediction, "threat_level", verdict.ThreatLevel)

	writeJSON(w, http.StatusOK, verdict)
}

// decodeURL parses the request body and rejects missing URLs with a
// 400 before any queue interaction.
func (h *ScanHandler) decodeURL(w http.ResponseWriter, r *http.Request) (predictRequest, bool) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "No URL provided")
		return predictRequest{}, false
	}
	return req, true
}

// classify returns the verdict for a URL, consulting the verdict
// cache first. Cache failures degrade to a plain classification.
func (h *ScanHandler) classify(r *http.Request, url string) predictResponse {
	const keyPrefix = "verdict:"

	if h.cache != nil {
		if raw, err := h.cache.Get(r.Context(), keyPrefix+url); err == nil {
			var cached predictResponse
			if jerr := json.Unmarshal(raw, &cached); jerr == nil {
				return cached
			}
		}
	}

	status := h.classifier.Classify(url)
	verdict := predictResponse{
		Prediction:  status,
		ThreatLevel: model.ThreatLevelFor(status, h.highLabels),
	}

	if h.cache != nil {
		if raw, err := json.Marshal(verdict); err == nil {
			if cerr := h.cache.Set(r.Context(), keyPrefix+url, raw, h.cacheTTL); cerr != nil {
				slog.Warn("failed to cache verdict", "url", url, "error", cerr)
			}
		}
	}

	return verdict
}
