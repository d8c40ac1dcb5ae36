// Package model holds the data types shared across every component: the
// node tagged union, credentials, batch state, and the error taxonomy from
// spec §7.
package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for the parts of the taxonomy that carry no payload.
var (
	// ErrNotFound means a path could not be resolved to a node.
	ErrNotFound = errors.New("not found")
	// ErrAuth means credentials are missing, expired, or rejected by the server.
	ErrAuth = errors.New("not authenticated")
	// ErrConflict means a remote entity exists and the active conflict
	// policy forbids overwriting it. Callers turn this into a task skip,
	// never a hard failure.
	ErrConflict = errors.New("conflict")
	// ErrNeed2FA means the server requires a two-factor code that was not supplied.
	ErrNeed2FA = errors.New("two-factor code required")
	// ErrWrong2FA means the supplied two-factor code was rejected.
	ErrWrong2FA = errors.New("two-factor code incorrect")
	// ErrBadAuthVersion means derive-keys was asked for an authVersion
	// other than 1 or 2.
	ErrBadAuthVersion = errors.New("unsupported auth version")
	// ErrBadEnvelopeVersion means a metadata envelope's prefix was not "002".
	ErrBadEnvelopeVersion = errors.New("unsupported metadata envelope version")
	// ErrBadAuth means an AEAD tag failed to verify.
	ErrBadAuth = errors.New("authentication tag mismatch")
)

// NotFoundError carries the partial path prefix that was actually reached,
// per spec §4.4's "Resolve path" operation.
type NotFoundError struct {
	Path          string
	ReachedPrefix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path not found: %s (reached %q)", e.Path, e.ReachedPrefix)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// TransientError wraps a retryable failure: network errors and 5xx
// responses. The wire client's JSON calls (Post/Get) retry these per the
// configured backoff; the chunk upload/download calls make a single
// attempt, and the transfer engine does not retry them, so a transient
// chunk failure reaches the caller (as ChunkFailedError on upload).
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return "transient: " + e.Cause.Error() }
func (e *TransientError) Unwrap() error { return e.Cause }

// ChunkFailedError is the resume contract of spec §4.5.1 step 5: a chunk
// upload failure carries the file uuid, upload key and index of the last
// acknowledged chunk for the orchestrator to resume from. On a resumed
// attempt that index can come from the earlier attempt; LastSuccessfulChunk
// is -1 when no chunk of the file has been acknowledged.
type ChunkFailedError struct {
	FileUUID           string
	UploadKey          string
	LastSuccessfulChunk int
	Cause              error
}

func (e *ChunkFailedError) Error() string {
	return fmt.Sprintf("chunk upload interrupted after chunk %d: %v", e.LastSuccessfulChunk, e.Cause)
}

func (e *ChunkFailedError) Unwrap() error { return e.Cause }

// ServerRejectError wraps a terminal 4xx response whose body carried a
// server-supplied message (spec §4.2's ServerReject).
type ServerRejectError struct {
	StatusCode int
	Message    string
}

func (e *ServerRejectError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Message)
}

// FatalError wraps an unrecoverable condition: malformed responses,
// decryption failure against every master key, an unreadable local file,
// or exhausted retries.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return "fatal: " + e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }
