package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors. The three pipeline kinds have distinct
// containment scopes: configuration errors are fatal at construction,
// extraction errors are contained per fragment, page processing errors
// are contained per page.
var (
	ErrConfiguration  = errors.New("invalid configuration")
	ErrExtraction     = errors.New("extraction failed")
	ErrPageProcessing = errors.New("page processing failed")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError marks invalid tiling/threshold/client parameters.
func NewConfigurationError(message string) *AppError {
	return NewAppError("CONFIGURATION_ERROR", message, ErrConfiguration)
}

// NewExtractionError marks a failed model call for one fragment.
func NewExtractionError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrExtraction
	} else {
		cause = fmt.Errorf("%w: %w", ErrExtraction, cause)
	}
	return NewAppError("EXTRACTION_ERROR", message, cause)
}

// NewPageProcessingError marks an unrecoverable per-page failure
// (corrupt image, undecodable page).
func NewPageProcessingError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrPageProcessing
	} else {
		cause = fmt.Errorf("%w: %w", ErrPageProcessing, cause)
	}
	return NewAppError("PAGE_PROCESSING_ERROR", message, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
