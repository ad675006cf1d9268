package domain

import (
	"fmt"
)

// ErrorCode represents a specific type of error in the domain.
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeMissingField ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange   ErrorCode = "OUT_OF_RANGE"

	// Pipeline specific errors
	CodeSourceNotFound  ErrorCode = "SOURCE_NOT_FOUND"
	CodePaperNotFound   ErrorCode = "PAPER_NOT_FOUND"
	CodeAttemptNotFound ErrorCode = "ATTEMPT_NOT_FOUND"
	CodePaperNotReady   ErrorCode = "PAPER_NOT_READY"
	CodeNotImplemented  ErrorCode = "NOT_IMPLEMENTED"
	CodeLLMServiceError ErrorCode = "LLM_SERVICE_ERROR"
	CodeGroundingError  ErrorCode = "GROUNDING_ERROR"
	CodeEmptyContent    ErrorCode = "EMPTY_CONTENT"
)

// DomainError represents a domain-specific error.
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DomainError.
func NewError(code ErrorCode, message string, cause error) *DomainError {
	return &DomainError{Code: code, Message: message, Cause: cause}
}

func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewError(CodeInternal, message, cause)
}

func NewConflictError(message string) *DomainError {
	return NewError(CodeConflict, message, nil)
}

func NewSourceNotFoundError(sourceID string) *DomainError {
	return NewError(CodeSourceNotFound, fmt.Sprintf("Source not found: %s", sourceID), nil)
}

func NewPaperNotFoundError(paperID string) *DomainError {
	return NewError(CodePaperNotFound, fmt.Sprintf("Paper not found: %s", paperID), nil)
}

func NewAttemptNotFoundError(attemptID string) *DomainError {
	return NewError(CodeAttemptNotFound, fmt.Sprintf("Attempt not found: %s", attemptID), nil)
}

func NewLLMServiceError(cause error) *DomainError {
	return NewError(CodeLLMServiceError, "LLM provider call failed", cause)
}

// NewGroundingError marks a generation whose citations reference chunks that
// were never offered to the model. A single bad reference invalidates the
// whole paper.
func NewGroundingError(ref string) *DomainError {
	return NewError(CodeGroundingError, fmt.Sprintf("LLM returned unknown chunk ref: %s", ref), nil)
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates field failures for one request.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s (and %d more)", e[0].Error(), len(e)-1)
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Message: "is required"}
}

func NewInvalidFormatError(field, value string) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("has invalid format: %q", value)}
}

func NewOutOfRangeError(field string, got, min, max int) ValidationError {
	return ValidationError{Field: field, Message: fmt.Sprintf("out of range: got %d, want %d..%d", got, min, max)}
}
