// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/containerd/errdefs"
)

// Error codes written in the "error" field of error responses.
const (
	CodeInvalidArgument    = "invalid_argument"
	CodeNotFound           = "not_found"
	CodeFailedPrecondition = "failed_precondition"
	CodeInternal           = "internal_error"
)

// InternalMessage is the only detail a 500 response carries.
const InternalMessage = "internal server error"

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a JSON error response with the given status code.
// The error response includes an error code and a human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteBadRequest writes a 400 Bad Request error response.
func WriteBadRequest(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusBadRequest, errCode, message)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, InternalMessage)
}

// StatusFor classifies err for an HTTP response. Argument, not-found and
// failed-precondition errors are the caller's to fix and map to 400;
// anything else is a 500.
func StatusFor(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest, CodeInvalidArgument
	case errdefs.IsNotFound(err):
		return http.StatusBadRequest, CodeNotFound
	case errdefs.IsFailedPrecondition(err):
		return http.StatusBadRequest, CodeFailedPrecondition
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// WriteErrorFor writes the response StatusFor selects. Only 400 responses
// carry err's message; 500 responses are generic.
func WriteErrorFor(w http.ResponseWriter, err error) int {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		WriteInternalError(w)
		return status
	}
	WriteBadRequest(w, code, err.Error())
	return status
}
