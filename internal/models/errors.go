package models

import "errors"

// Core error taxonomy. Handlers map these onto HTTP status codes; internal
// packages wrap them with fmt.Errorf("...: %w", err) for context.
var (
	// ErrNotFound indicates a referenced product or category does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates an empty required field or an out-of-range
	// request parameter (e.g. pageSize above the hard maximum).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConstraintViolation indicates a rejected duplicate association or a
	// second primary association for the same product.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrConflict indicates a concurrent category write lost a race. The
	// classification engine retries one conflict transparently before
	// surfacing it.
	ErrConflict = errors.New("conflict")
)

// ErrorResponse is the standard error envelope returned by all handlers.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}
