package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteJSON writes an arbitrary payload as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	}

	// Log encoding errors but don't expose them to client
	_ = json.NewEncoder(w).Encode(resp)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteAccountLocked tells a locked-out caller how long to wait, and nothing
// else. Internal store or sync detail never reaches the client.
func WriteAccountLocked(w http.ResponseWriter, timeRemaining time.Duration) {
	minutes := int(timeRemaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	w.Header().Set("Retry-After", fmt.Sprintf("%d", int(timeRemaining.Round(time.Second)/time.Second)))
	unit := "minutes"
	if minutes == 1 {
		unit = "minute"
	}
	WriteError(w, http.StatusLocked, "account_locked",
		fmt.Sprintf("Account temporarily locked. Try again in %d %s.", minutes, unit))
}
