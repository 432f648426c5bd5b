package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes errors raised by the development API server.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

func NewBadRequest(message string) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest)
}

func NewNotFound(resource string) error {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized)
}

func NewConflict(message string) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return &DomainError{Code: "VALIDATION_FAILED", Message: validationErr.Error(), HTTPStatus: http.StatusBadRequest, Err: err}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource").(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// FormField is the key under which form-level (non field-scoped) messages are reported.
const FormField = "_form"

// ValidationError is a local, field-scoped rejection raised before any network call.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NetworkError is a transport failure or timeout. It is never retried automatically.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerError is an authoritative rejection by the API; Detail is shown to the user verbatim.
type ServerError struct {
	Status int
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Detail)
}

// InconsistencyError reports a status transition whose status write succeeded
// while the matching history append failed. The status change stands.
type InconsistencyError struct {
	ResourceID int64
	From       string
	To         string
	Err        error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("resource %d moved %s → %s but history was not recorded: %v", e.ResourceID, e.From, e.To, e.Err)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

// UserMessage renders an error the way it should appear in a notification.
func UserMessage(err error) string {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && serverErr.Detail != "" {
		return serverErr.Detail
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "network unavailable, try again"
	}
	return err.Error()
}
