package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches sentinel domain errors by code and message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAlreadyExists      = "ALREADY_EXISTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeConfiguration      = "CONFIGURATION_ERROR"
	ErrCodeService            = "SERVICE_ERROR"
	ErrCodeDataIntegrity      = "DATA_INTEGRITY_ERROR"
	ErrCodeIndexIncomplete    = "INDEX_INCOMPLETE"
	ErrCodeContextUnavailable = "CONTEXT_UNAVAILABLE"
)

// Validation errors
var (
	ErrInvalidArtifactKind = NewDomainError(ErrCodeValidation, "invalid artifact kind")
	ErrEmptyDocument       = NewDomainError(ErrCodeValidation, "document has no extractable text")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound        = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrConsultationNotFound = NewDomainError(ErrCodeNotFound, "consultation not found")
	ErrRecordNotFound       = NewDomainError(ErrCodeNotFound, "consultation record not found")
)

// Collaborator errors
var (
	ErrEmbeddingNotConfigured  = NewDomainError(ErrCodeConfiguration, "embedding service not configured")
	ErrCompletionNotConfigured = NewDomainError(ErrCodeConfiguration, "completion service not configured")
	ErrDimensionMismatch       = NewDomainError(ErrCodeDataIntegrity, "embedding dimensionality mismatch")
)

// NewConfigurationError reports a missing credential or endpoint.
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// NewServiceError wraps a failed call to the embedding or completion service.
func NewServiceError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeService, message, err)
}

// NewDataIntegrityError reports stored data that violates a knowledge-bank invariant.
func NewDataIntegrityError(message string) *DomainError {
	return NewDomainError(ErrCodeDataIntegrity, message)
}

// HasCode reports whether any DomainError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// IsConfigurationError reports whether err is caused by missing configuration.
func IsConfigurationError(err error) bool {
	return HasCode(err, ErrCodeConfiguration)
}

// IsServiceError reports whether err is caused by a failed external service call.
func IsServiceError(err error) bool {
	return HasCode(err, ErrCodeService)
}

// NewIndexIncompleteError reports an index run that stopped early. The cause
// stays in the chain so callers can still see the service failure.
func NewIndexIncompleteError(embedded, remaining int, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIndexIncomplete,
		fmt.Sprintf("index incomplete: %d embedded, %d remaining", embedded, remaining), err)
}

// NewContextUnavailableError reports that retrieval context could not be produced.
func NewContextUnavailableError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeContextUnavailable, "retrieval context unavailable", err)
}

// IsDataIntegrityError reports whether err is caused by inconsistent stored data.
func IsDataIntegrityError(err error) bool {
	return HasCode(err, ErrCodeDataIntegrity)
}

// IsIndexIncomplete reports whether err comes from an index run that stopped early.
func IsIndexIncomplete(err error) bool {
	return HasCode(err, ErrCodeIndexIncomplete)
}
