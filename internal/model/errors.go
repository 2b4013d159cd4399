package model

import (
	"errors"
	"fmt"
)

// Error is the error type returned across offpos component boundaries.
//
// Error carries a category code so callers can decide how to recover:
//   - RemoteUnavailable: network failure, timeout, 5xx, open breaker
//   - RemoteRejected: the authoritative store validated and declined
//   - StorageUnavailable: local persistence failed
//   - NotFound: get/delete on a missing key
//   - Conflict: a create-only write hit an existing key with other content
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the operation that failed (e.g. "submit sale", "store put").
	Op string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodeRemoteUnavailable indicates the remote store could not be reached
	// or did not answer in time. The outcome of the call is unknown.
	ErrCodeRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"

	// ErrCodeRemoteRejected indicates the remote store declined the request.
	ErrCodeRemoteRejected ErrorCode = "REMOTE_REJECTED"

	// ErrCodeStorageUnavailable indicates the local durable store failed.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeNotFound indicates a missing record.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates an existing record with different content.
	ErrCodeConflict ErrorCode = "CONFLICT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrSaleNotRecorded is returned by checkout when the remote commit failed
// and the sale could not be queued either. The cart is left untouched.
var ErrSaleNotRecorded = errors.New("sale was neither committed nor queued")

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRemoteUnavailable returns true if err is a RemoteUnavailable error.
// Uses errors.As to handle wrapped errors.
func IsRemoteUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeRemoteUnavailable
}

// IsRemoteRejected returns true if err is a RemoteRejected error.
func IsRemoteRejected(err error) bool {
	return CodeOf(err) == ErrCodeRemoteRejected
}

// IsStorageUnavailable returns true if err is a StorageUnavailable error.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStorageUnavailable
}

// IsNotFound returns true if err is a NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsConflict returns true if err is a Conflict error.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

// NewRemoteUnavailable creates a RemoteUnavailable error.
func NewRemoteUnavailable(op string, err error) *Error {
	return &Error{Code: ErrCodeRemoteUnavailable, Op: op, Err: err}
}

// NewRemoteRejected creates a RemoteRejected error with the server's reason.
func NewRemoteRejected(op, reason string) *Error {
	return &Error{Code: ErrCodeRemoteRejected, Op: op, Message: reason}
}

// NewStorageUnavailable creates a StorageUnavailable error.
func NewStorageUnavailable(op string, err error) *Error {
	return &Error{Code: ErrCodeStorageUnavailable, Op: op, Err: err}
}

// NewNotFound creates a NotFound error for a collection key.
func NewNotFound(op, collection, key string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Op:      op,
		Message: fmt.Sprintf("%s/%s", collection, key),
	}
}

// NewConflict creates a Conflict error for a collection key.
func NewConflict(op, collection, key string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Op:      op,
		Message: fmt.Sprintf("%s/%s exists with different content", collection, key),
	}
}
