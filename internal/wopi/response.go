package wopi

import (
	"encoding/json"
	"net/http"
)

// ServerInfo carries the two headers every WOPI response must include
// so the encoder does not need process-global state.
type ServerInfo struct {
	Version     string
	MachineName string
}

// Encoder applies the standard WOPI response headers before any
// handler-specific status/body is written. It is intentionally tiny: WOPI's
// contract is carried in status codes and a handful of headers, not in a
// rich response envelope.
type Encoder struct {
	Info ServerInfo
}

// NewEncoder builds an Encoder for the given server identity.
func NewEncoder(info ServerInfo) *Encoder {
	return &Encoder{Info: info}
}

// Prepare sets the always-present WOPI headers on w. Every handler must call
// this before writing a status code.
func (e *Encoder) Prepare(w http.ResponseWriter) {
	w.Header().Set(HeaderServerVersion, e.Info.Version)
	w.Header().Set(HeaderMachineName, e.Info.MachineName)
}

// Success writes a 200 with no body (used by Lock/Unlock/RefreshLock/
// UnlockAndRelock/DeleteFile and other operations with an empty success body).
func (e *Encoder) Success(w http.ResponseWriter) {
	e.Prepare(w)
	w.WriteHeader(http.StatusOK)
}

// JSON writes a 200 with a JSON-encoded body.
func (e *Encoder) JSON(w http.ResponseWriter, v any) error {
	e.Prepare(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(v)
}

// InvalidToken writes 401 Invalid Token.
func (e *Encoder) InvalidToken(w http.ResponseWriter) {
	e.Prepare(w)
	w.WriteHeader(http.StatusUnauthorized)
}

// FileUnknown writes 404 File Unknown / User Unauthorized.
func (e *Encoder) FileUnknown(w http.ResponseWriter) {
	e.Prepare(w)
	w.WriteHeader(http.StatusNotFound)
}

// LockMismatch writes 409 with the current lock and, optionally, a failure
// reason. currentLock may be empty.
func (e *Encoder) LockMismatch(w http.ResponseWriter, currentLock, reason string) {
	e.Prepare(w)
	w.Header().Set(HeaderLock, currentLock)
	if reason != "" {
		w.Header().Set(HeaderLockFailureReason, reason)
	}
	w.WriteHeader(http.StatusConflict)
}

// ServerError writes 500 Server Error.
func (e *Encoder) ServerError(w http.ResponseWriter) {
	e.Prepare(w)
	w.WriteHeader(http.StatusInternalServerError)
}

// Unsupported writes 501 Unsupported.
func (e *Encoder) Unsupported(w http.ResponseWriter) {
	e.Prepare(w)
	w.WriteHeader(http.StatusNotImplemented)
}

// BadRequest writes 400, optionally with the invalid-filename header used by
// RenameFile on a name conflict.
func (e *Encoder) BadRequest(w http.ResponseWriter, invalidFileNameError string) {
	e.Prepare(w)
	if invalidFileNameError != "" {
		w.Header().Set(HeaderInvalidFileNameError, invalidFileNameError)
	}
	w.WriteHeader(http.StatusBadRequest)
}
