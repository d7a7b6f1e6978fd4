package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassNetwork is a transport failure without a response.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassServer is a 5xx response.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassClient is a 4xx response without field errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassValidation is a 422 response or any response carrying field errors.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassUnauthorized is a 401 response.
	ErrorClassUnauthorized ErrorClass = "unauthorized"

	// ErrorClassInternal covers failures that never reached the API
	// (request construction, response decoding).
	ErrorClassInternal ErrorClass = "internal"
)

// FieldError is a per-field validation message from the error envelope.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the error type returned for every failed call.
// Code and Message come from the error envelope when the API sent one.
type APIError struct {
	StatusCode  int          `json:"-"`
	Class       ErrorClass   `json:"-"`
	Code        int          `json:"code"`
	Message     string       `json:"message"`
	FieldErrors []FieldError `json:"errors,omitempty"`
	Err         error        `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api %s error", e.Class)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// FieldMessage returns the first message for a field, or "".
func (e *APIError) FieldMessage(field string) string {
	for _, fe := range e.FieldErrors {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

// IsUnauthorized reports whether err is a 401 APIError.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ErrorClassUnauthorized
}

// AsAPIError converts any error into an *APIError. Errors that are not
// already API errors become {code: 500, message: "Unknown error"}.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{
		Class:   ErrorClassInternal,
		Code:    http.StatusInternalServerError,
		Message: "Unknown error",
		Err:     err,
	}
}

// classifyStatus maps an HTTP status to an ErrorClass. 2xx and 3xx yield "".
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassUnauthorized
	case status == http.StatusUnprocessableEntity:
		return ErrorClassValidation
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// decodeAPIError builds an APIError from a non-2xx response body. A body
// that is not an error envelope still yields a usable error.
func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}

	if apiErr.Code == 0 {
		apiErr.Code = status
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	apiErr.Class = classifyStatus(status)
	if len(apiErr.FieldErrors) > 0 && apiErr.Class == ErrorClassClient {
		apiErr.Class = ErrorClassValidation
	}
	return apiErr
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		// 4xx never improve on retry; 401 is handled by the session.
		return false
	}
}
