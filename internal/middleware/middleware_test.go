// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// simpleOKHandler returns 200 OK for every request.
var simpleOKHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func executeRequest(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/predict", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitAllowsWithinBurst(t *testing.T) {
	handler := RateLimit(1, 3)(simpleOKHandler)

	for i := 0; i < 3; i++ {
		if w := executeRequest(handler, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	handler := RateLimit(0.001, 2)(simpleOKHandler)

	executeRequest(handler, "10.0.0.1:1234")
	executeRequest(handler, "10.0.0.1:1234")

	w := executeRequest(handler, "10.0.0.1:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["error"] != "Rate limit exceeded. Please slow down." {
		t.Errorf("error = %q, want the rate limit message", body["error"])
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	handler := RateLimit(0.001, 1)(simpleOKHandler)

	// First client exhausts its bucket.
	executeRequest(handler, "10.0.0.1:1234")
	if w := executeRequest(handler, "10.0.0.1:1234"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client status = %d, want 429", w.Code)
	}

	// A different client still has its full budget.
	if w := executeRequest(handler, "10.0.0.2:1234"); w.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", w.Code)
	}
}

func TestRateLimitBareHostAddress(t *testing.T) {
	handler := RateLimit(0.001, 1)(simpleOKHandler)

	// chi's RealIP rewrites RemoteAddr to a bare host without a port.
	if w := executeRequest(handler, "203.0.113.7"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := executeRequest(handler, "203.0.113.7"); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429: bare host must still be tracked", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(simpleOKHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got == "" {
		t.Error("expected Referrer-Policy header")
	}
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("CSP = %q, want default-src 'none'", csp)
	}
}
