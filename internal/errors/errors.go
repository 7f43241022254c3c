// Package errors defines the application error taxonomy and its handling helpers.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes.
const (
	CodeValidation      = "E100"
	CodeDatabase        = "E200"
	CodeTransient       = "E300"
	CodeSessionNotFound = "E400"
	CodeRateLimit       = "E500"
	CodeExecution       = "E600"
	CodeConflict        = "E700"
)

const defaultUserMessage = "Something went wrong. Please try again later."

type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr != nil && appErr.Code == code
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        CodeValidation,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input: %s", msg),
		Severity:    SeverityLow,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        CodeDatabase,
		Message:     fmt.Sprintf("Database error: %s", underlyingMsg),
		UserMessage: "Temporary problem, please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTransientError wraps a timeout or failure of an external dependency.
func NewTransientError(service string, cause error) *AppError {
	msg := fmt.Sprintf("%s unavailable", service)
	if cause != nil {
		msg = fmt.Sprintf("%s unavailable: %s", service, cause.Error())
	}

	return &AppError{
		Code:        CodeTransient,
		Message:     msg,
		UserMessage: "The service is temporarily unavailable. Please try again.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewTimeoutError reports a handler that ran past its deadline.
func NewTimeoutError(cause error) *AppError {
	return &AppError{
		Code:        CodeTransient,
		Message:     "request timed out",
		UserMessage: "Request timed out. Please try again.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewSessionNotFoundError reports a missing session where one was required.
func NewSessionNotFoundError(userID int64) *AppError {
	return &AppError{
		Code:        CodeSessionNotFound,
		Message:     fmt.Sprintf("session not found for user %d", userID),
		UserMessage: "Your session has expired. Send /start to begin again.",
		Severity:    SeverityLow,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds.", retryAfter),
		Severity:    SeverityLow,
	}
}

// NewExecutionError wraps a failed swap execution. reason is shown to the user.
func NewExecutionError(reason string, cause error) *AppError {
	if reason == "" {
		reason = "execution failed"
	}

	return &AppError{
		Code:        CodeExecution,
		Message:     fmt.Sprintf("swap execution failed: %s", reason),
		UserMessage: fmt.Sprintf("Swap failed: %s", reason),
		Severity:    SeverityMedium,
		cause:       cause,
	}
}

// NewConflictError reports a lost compare-and-set race.
func NewConflictError(msg string, cause error) *AppError {
	return &AppError{
		Code:        CodeConflict,
		Message:     msg,
		UserMessage: "This order is already being executed.",
		Severity:    SeverityLow,
		cause:       cause,
	}
}
