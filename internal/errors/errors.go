package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a SmartQR error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound        ErrorCode = "NOT_FOUND"         // 404
	ErrFileNotFound    ErrorCode = "FILE_NOT_FOUND"    // 404
	ErrContentTooLarge ErrorCode = "CONTENT_TOO_LARGE" // 413
	ErrEmptyContent    ErrorCode = "EMPTY_CONTENT"     // 422
	ErrCancelled       ErrorCode = "CANCELLED"         // 499
	ErrInternal        ErrorCode = "INTERNAL"          // 500
)

// QRError represents a structured error with code, status, and details.
type QRError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *QRError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *QRError {
	return &QRError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a history entry cannot be found.
func NewNotFound(identifier string) *QRError {
	return &QRError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("history entry not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *QRError {
	return &QRError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewContentTooLarge creates a 413 error when content exceeds the size limit.
func NewContentTooLarge(max, actual int) *QRError {
	return &QRError{
		Code:    ErrContentTooLarge,
		Status:  413,
		Message: fmt.Sprintf("content exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewEmptyContent creates a 422 error when generation produced nothing to encode.
func NewEmptyContent(mode string) *QRError {
	return &QRError{
		Code:    ErrEmptyContent,
		Status:  422,
		Message: "no content to encode",
		Details: map[string]any{"mode": mode},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its context.
func NewCancelled(op string) *QRError {
	return &QRError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *QRError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &QRError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a QRError with the given code.
func Is(err error, code ErrorCode) bool {
	var qErr *QRError
	if stderrors.As(err, &qErr) {
		return qErr.Code == code
	}
	return false
}
