package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "validation error should not retry",
			errorClass: ErrorClassValidation,
			expected:   false,
		},
		{
			name:       "unauthorized should not retry",
			errorClass: ErrorClassUnauthorized,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "internal error should not retry",
			errorClass: ErrorClassInternal,
			expected:   false,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{200, ""},
		{304, ""},
		{400, ErrorClassClient},
		{401, ErrorClassUnauthorized},
		{404, ErrorClassClient},
		{422, ErrorClassValidation},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.expected {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				Class:   ErrorClassNetwork,
				Message: "network failure",
				Err:     errors.New("connection refused"),
			},
			expected: "api network error: network failure: connection refused",
		},
		{
			name: "error with status",
			apiError: &APIError{
				StatusCode: 404,
				Class:      ErrorClassClient,
				Message:    "Branch not found",
			},
			expected: "api client error (status 404): Branch not found",
		},
		{
			name:     "bare class",
			apiError: &APIError{Class: ErrorClassInternal},
			expected: "api internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	inner := errors.New("inner error")
	apiErr := &APIError{Class: ErrorClassNetwork, Err: inner}

	if !errors.Is(apiErr, inner) {
		t.Error("Expected errors.Is to find the wrapped error")
	}
	if (&APIError{}).Unwrap() != nil {
		t.Error("Expected nil Unwrap without wrapped error")
	}
}

func TestAsAPIError(t *testing.T) {
	if AsAPIError(nil) != nil {
		t.Error("AsAPIError(nil) should be nil")
	}

	original := &APIError{StatusCode: 422, Class: ErrorClassValidation, Code: 422}
	wrapped := fmt.Errorf("%w after 3 attempts: %w", ErrRetryExhausted, original)
	if got := AsAPIError(wrapped); got != original {
		t.Errorf("AsAPIError(wrapped) = %+v, want the original", got)
	}

	unknown := AsAPIError(errors.New("boom"))
	if unknown.Code != 500 || unknown.Message != "Unknown error" || unknown.Class != ErrorClassInternal {
		t.Errorf("AsAPIError(unknown) = %+v", unknown)
	}
}

func TestDecodeAPIError(t *testing.T) {
	apiErr := decodeAPIError(422, []byte(`{"code":42201,"message":"Invalid","errors":[{"field":"name","message":"too short"},{"field":"name","message":"ignored"}]}`))

	if apiErr.Code != 42201 {
		t.Errorf("Code = %d, want envelope code 42201", apiErr.Code)
	}
	if apiErr.StatusCode != 422 {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if got := apiErr.FieldMessage("name"); got != "too short" {
		t.Errorf("FieldMessage(name) = %q, want first message", got)
	}
	if got := apiErr.FieldMessage("email"); got != "" {
		t.Errorf("FieldMessage(email) = %q, want empty", got)
	}

	empty := decodeAPIError(502, nil)
	if empty.Code != 502 || empty.Message != "Bad Gateway" || empty.Class != ErrorClassServer {
		t.Errorf("decodeAPIError(502, nil) = %+v", empty)
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(fmt.Errorf("wrap: %w", &APIError{Class: ErrorClassUnauthorized})) {
		t.Error("Expected wrapped 401 to be detected")
	}
	if IsUnauthorized(&APIError{Class: ErrorClassClient}) {
		t.Error("Expected 4xx to be rejected")
	}
	if IsUnauthorized(errors.New("plain")) {
		t.Error("Expected plain error to be rejected")
	}
}
