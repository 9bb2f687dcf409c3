package domain

import "fmt"

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
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeConfiguration    = "CONFIGURATION_ERROR"
	ErrCodeExtraction       = "EXTRACTION_ERROR"
	ErrCodeProvider         = "PROVIDER_ERROR"
)

// Validation errors
var (
	ErrInvalidDocumentStatus = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidFlagStatus     = NewDomainError(ErrCodeValidation, "invalid flag status")
	ErrInvalidJobStatus      = NewDomainError(ErrCodeValidation, "invalid processing job status")
	ErrMissingRequiredField  = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound         = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrAgentNotFound         = NewDomainError(ErrCodeNotFound, "agent not found")
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrFlagNotFound          = NewDomainError(ErrCodeNotFound, "flagged interaction not found")
)

// Operation errors
var (
	ErrFlagAlreadyReviewed = NewDomainError(ErrCodeInvalidOperation, "flagged interaction has already been reviewed")
	ErrDocumentProcessing  = NewDomainError(ErrCodeInvalidOperation, "document is currently being processed")
)
