// Package apperror defines the closed set of failures returned to callers.
package apperror

import (
	"errors"
	"fmt"
)

// A Code is the machine-readable identifier sent to clients.
type Code string

const (
	CodeNotFound        Code = "NOT_FOUND"
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeConflict        Code = "CONFLICT"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
)

// Error is implemented by every failure kind in this package and nothing
// else.
type Error interface {
	error
	Code() Code
	// Public returns the message that is safe to show to the end user.
	Public() string
	sealed()
}

// NotFoundError reports a resource that does not exist or that the caller
// does not own. Both causes produce the same value.
type NotFoundError struct {
	Resource string
}

func NotFound(resource string) *NotFoundError { return &NotFoundError{Resource: resource} }

func (e *NotFoundError) Error() string  { return e.Resource + " not found" }
func (e *NotFoundError) Code() Code     { return CodeNotFound }
func (e *NotFoundError) Public() string { return capitalize(e.Error()) }
func (*NotFoundError) sealed()          {}

// ValidationError reports input that violates a length or emptiness rule.
type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string  { return e.Field + ": " + e.Reason }
func (e *ValidationError) Code() Code     { return CodeBadRequest }
func (e *ValidationError) Public() string { return capitalize(e.Field) + " " + e.Reason }
func (*ValidationError) sealed()          {}

// ConflictError reports a write that would duplicate an existing row.
type ConflictError struct {
	Reason string
}

func Conflict(reason string) *ConflictError { return &ConflictError{Reason: reason} }

func (e *ConflictError) Error() string  { return e.Reason }
func (e *ConflictError) Code() Code     { return CodeConflict }
func (e *ConflictError) Public() string { return capitalize(e.Reason) }
func (*ConflictError) sealed()          {}

// RateLimitedError reports a denied admission. RetryAfter is in whole
// seconds and is at least 1.
type RateLimitedError struct {
	RetryAfter int
}

func RateLimited(retryAfter int) *RateLimitedError {
	if retryAfter < 1 {
		retryAfter = 1
	}
	return &RateLimitedError{RetryAfter: retryAfter}
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}
func (e *RateLimitedError) Code() Code { return CodeTooManyRequests }
func (e *RateLimitedError) Public() string {
	return fmt.Sprintf("Too many requests, please retry in %d seconds", e.RetryAfter)
}
func (*RateLimitedError) sealed() {}

// InternalError wraps a storage or collaborator failure. Its cause is only
// meant for server-side logs.
type InternalError struct {
	Op  string
	Err error
}

func Internal(op string, err error) *InternalError { return &InternalError{Op: op, Err: err} }

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}
func (e *InternalError) Unwrap() error  { return e.Err }
func (e *InternalError) Code() Code     { return CodeInternal }
func (e *InternalError) Public() string { return "Internal server error" }
func (*InternalError) sealed()          {}

// As returns err as a taxonomy error. Anything outside the taxonomy is
// wrapped in an InternalError.
func As(err error) Error {
	if err == nil {
		return nil
	}
	var e Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("unexpected", err)
}

// CodeOf returns the code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return As(err).Code()
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
