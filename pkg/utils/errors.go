package utils

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation"
)

// StatusCoder is implemented by every error kind the HTTP layer knows how to render.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
	// Status overrides the default 400, e.g. 422 for policy violations.
	Status int
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusBadRequest
}

// AuthError covers bad credentials and codes (400), missing sessions (401)
// and forbidden actions (403).
type AuthError struct {
	Message string
	Status  int
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return http.StatusBadRequest
}

// Forbidden builds a 403 AuthError.
func Forbidden(msg string) *AuthError {
	return &AuthError{Message: msg, Status: http.StatusForbidden}
}

// Unauthorized builds a 401 AuthError.
func Unauthorized(msg string) *AuthError {
	return &AuthError{Message: msg, Status: http.StatusUnauthorized}
}

type NotFoundError struct {
	Resource string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Resource + " not found"
}

func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

// ConflictError is rendered as 400 to keep the public contract of duplicate
// registrations and invitations.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) HTTPStatus() int {
	return http.StatusBadRequest
}

// RateLimitError carries the number of seconds the caller should wait.
type RateLimitError struct {
	Message    string
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) HTTPStatus() int {
	return http.StatusTooManyRequests
}

// InternalError wraps an unexpected failure. Its detail is never shown to
// clients outside development.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func (e *InternalError) HTTPStatus() int {
	return http.StatusInternalServerError
}

// Internal wraps err as an InternalError for operation op. A nil err stays nil.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InternalError{Op: op, Err: err}
}

// StatusOf returns the HTTP status an error maps to, 500 for unknown errors.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// FromValidation converts ozzo-validation errors into a ValidationError
// naming the first offending field. Other errors pass through unchanged.
func FromValidation(err error, status int) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if len(fields) == 0 {
		return &ValidationError{Message: err.Error(), Status: status}
	}
	first := fields[0]
	return &ValidationError{Field: first, Message: verrs[first].Error(), Status: status}
}
