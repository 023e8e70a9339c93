package srquick

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error categories every failed API call wraps. Match them with errors.Is.
var (
	ErrNetworkUnreachable = errors.New("network unreachable")
	ErrMalformedResponse  = errors.New("malformed response")
	ErrUnexpectedFormat   = errors.New("unexpected response format")
	ErrRequestRejected    = errors.New("request rejected")
	ErrServerFailure      = errors.New("server failure")
)

// Validation and configuration errors.
var (
	ErrInvalidUID          = errors.New("invalid uid")
	ErrInvalidCharacterID  = errors.New("invalid character id")
	ErrInvalidClientConfig = errors.New("invalid client config")
)

// ErrorKind distinguishes client-input failures from server failures.
type ErrorKind string

const (
	ErrorKindNone  ErrorKind = ""
	ErrorKindFail  ErrorKind = "fail"
	ErrorKindError ErrorKind = "error"
)

// APIError is the normalized failure of one API call.
type APIError struct {
	Message    string
	Kind       ErrorKind
	Code       string
	Details    json.RawMessage
	Raw        json.RawMessage
	HTTPStatus int
	cause      error
}

// Error returns the user-facing message.
func (apiError *APIError) Error() string {
	return apiError.Message
}

// Unwrap returns the error category.
func (apiError *APIError) Unwrap() error {
	return apiError.cause
}

func newAPIError(cause error, message string) *APIError {
	return &APIError{Message: message, cause: cause}
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

func (operationError OperationError) Operation() string {
	return operationError.operation
}

func (operationError OperationError) Subject() string {
	return operationError.subject
}

func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
