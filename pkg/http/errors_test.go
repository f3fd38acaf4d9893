package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteError_SetsStatusAndBody(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusBadRequest, "bad_request", "missing identity")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error != "bad_request" {
		t.Errorf("error code = %q, want bad_request", resp.Error)
	}
	if resp.Message != "missing identity" {
		t.Errorf("message = %q, want missing identity", resp.Message)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp["ok"] {
		t.Error("body missing ok=true")
	}
}

func TestWriteAccountLocked_RoundsUpToWholeMinutes(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAccountLocked(w, 4*time.Minute+31*time.Second)

	if w.Code != http.StatusLocked {
		t.Errorf("status = %d, want %d", w.Code, http.StatusLocked)
	}
	if ra := w.Header().Get("Retry-After"); ra != "271" {
		t.Errorf("Retry-After = %q, want 271", ra)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error != "account_locked" {
		t.Errorf("error code = %q, want account_locked", resp.Error)
	}
	if resp.Message != "Account temporarily locked. Try again in 5 minutes." {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestWriteAccountLocked_NeverReportsZeroMinutes(t *testing.T) {
	w := httptest.NewRecorder()

	WriteAccountLocked(w, 10*time.Second)

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Message != "Account temporarily locked. Try again in 1 minute." {
		t.Errorf("message = %q", resp.Message)
	}
}
