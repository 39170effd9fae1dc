package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory groups failures that surface as Go errors (configuration,
// data loading, reporting). Trading rejections use Result instead.
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"
	ErrorCategoryData          ErrorCategory = "DATA"
	ErrorCategoryValidation    ErrorCategory = "VALIDATION"
	ErrorCategoryRisk          ErrorCategory = "RISK"
	ErrorCategoryInternal      ErrorCategory = "INTERNAL"
	ErrorCategoryReport        ErrorCategory = "REPORT"
)

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsFatal returns whether this error should abort the run
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryConfiguration || e.Category == ErrorCategoryData
}

// NewBotError creates a new categorized error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with component context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// CategoryOf returns the category of the first BotError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Category, true
	}
	return "", false
}

func NewValidationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryValidation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewDataError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryData, component, operation)
}

func NewReportError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryReport, component, operation)
}
