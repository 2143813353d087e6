package pkg

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody is the error shape shared by the HTTP API and the realtime
// protocol: {"error": true, "code": 403, "reason": "banned"}.
type ErrorBody struct {
	Error  bool   `json:"error"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Success is the body of mutations that return nothing else.
type Success struct {
	Success bool `json:"success"`
}

// JSON writes data as the response body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// OK writes {"success": true}.
func OK(w http.ResponseWriter) {
	JSON(w, http.StatusOK, Success{Success: true})
}

// Error converts a domain error into an error body. Server errors are logged
// here so handlers stay thin; client errors are not incidents.
func Error(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("[http] internal error: %v", err)
	}
	ErrorWithMessage(w, status, ReasonOf(err))
}

// ErrorWithMessage writes an error body with an explicit status and reason.
func ErrorWithMessage(w http.ResponseWriter, status int, reason string) {
	JSON(w, status, ErrorBody{Error: true, Code: status, Reason: reason})
}
