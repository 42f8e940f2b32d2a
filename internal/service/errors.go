package service

import "fmt"

// Issue codes returned inside validation errors.
const (
	CodeInvalidUpdates = "INVALID_UPDATES"
	CodeInvalidStatus  = "INVALID_STATUS"
)

// NotFoundError reports a missing referenced entity (order, customer, payment).
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// Issue is one structured validation failure.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError carries a structured issue list, surfaced as HTTP 422.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Issues[0].Message, e.Issues[0].Code)
}

// Invalid builds a single-issue ValidationError.
func Invalid(code, path, message string) *ValidationError {
	return &ValidationError{Issues: []Issue{{Code: code, Path: path, Message: message}}}
}
