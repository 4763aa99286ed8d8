package errors

import "fmt"

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeFetchFailed   ErrCode = "FETCH_FAILED"
	ErrCodeParseFailed   ErrCode = "PARSE_FAILED"
	ErrCodeLookupFailed  ErrCode = "LOOKUP_FAILED"
	ErrCodePublishFailed ErrCode = "PUBLISH_FAILED"
	ErrCodeNotFound      ErrCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrCode = "UNAUTHORIZED"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error
func NewFetchError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeFetchFailed,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates a new parse error
func NewParseError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeParseFailed,
		Message: message,
	}
}

// NewLookupError creates a new lookup error
func NewLookupError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeLookupFailed,
		Message: message,
		Err:     err,
	}
}

// NewPublishError creates a new publish error
func NewPublishError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodePublishFailed,
		Message: message,
		Err:     err,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// IsParseError checks if the error is a parse error
func IsParseError(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrCodeParseFailed
	}
	return false
}

// IsUnauthorized checks if the error is an unauthorized error
func IsUnauthorized(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == ErrCodeUnauthorized
	}
	return false
}
