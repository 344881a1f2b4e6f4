package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Anchoring failures
	ErrEncoding = errors.New("selection could not be encoded")
	ErrDecoding = errors.New("position could not be decoded")

	// ErrPersistence marks a failed comment store call
	ErrPersistence = errors.New("comment store unavailable")

	// ErrStaleScope is returned when a load finishes after the session moved to another chapter
	ErrStaleScope = errors.New("chapter changed before load completed")

	// ErrNotMounted is returned when an operation needs chapter content that is not mounted
	ErrNotMounted = errors.New("chapter content not mounted")
)

// EncodingError reports a range whose boundaries are not among the container's text nodes.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEncoding, e.Reason)
}

func (e *EncodingError) StatusCode() int { return http.StatusUnprocessableEntity }

// Is allows errors.Is() to match against ErrEncoding
func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// DecodingError reports a stored position that cannot be mapped onto the current content.
type DecodingError struct {
	CommentID string
	Reason    string
}

func (e *DecodingError) Error() string {
	if e.CommentID == "" {
		return fmt.Sprintf("%s: %s", ErrDecoding, e.Reason)
	}
	return fmt.Sprintf("%s: comment %s: %s", ErrDecoding, e.CommentID, e.Reason)
}

func (e *DecodingError) StatusCode() int { return http.StatusUnprocessableEntity }

// Is allows errors.Is() to match against ErrDecoding
func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}

// PersistenceError wraps a failed store call for one operation.
type PersistenceError struct {
	Op  string // create, update, delete, list
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s comment: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) StatusCode() int { return http.StatusBadGateway }

// Is allows errors.Is() to match against ErrPersistence
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (comment, chapter)
	ResourceID   string // ID of the existing/conflicting resource
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return e.Message
}

// StatusCode implements the HTTPError interface
func (e *ConflictError) StatusCode() int {
	return http.StatusConflict
}

// Is allows errors.Is() to match against ErrConflict
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
