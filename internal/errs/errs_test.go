package errs

import (
	"errors"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(20001, "test error")

	if err.Code != 20001 {
		t.Errorf("Expected code 20001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(20001, "test error"),
			expected: "[20001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(20001, "test error").Wrap(errors.New("dial refused")),
			expected: "[20001] test error: dial refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Wrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrChannelNotReady.Wrap(originalErr)

	if appErr.Code != ErrChannelNotReady.Code {
		t.Errorf("Expected code %d, got %d", ErrChannelNotReady.Code, appErr.Code)
	}
	if appErr.Message != ErrChannelNotReady.Message {
		t.Errorf("Expected message '%s', got '%s'", ErrChannelNotReady.Message, appErr.Message)
	}
	if appErr.Err != originalErr {
		t.Error("Expected wrapped error to be the original error")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrCredentialExpired.Wrap(originalErr)

	unwrapped := errors.Unwrap(appErr)
	if unwrapped != originalErr {
		t.Error("Expected unwrapped error to be the original error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *AppError
		expected bool
	}{
		{
			name:     "same code",
			err:      ErrNotJoined.Wrap(errors.New("still connecting")),
			target:   ErrNotJoined,
			expected: true,
		},
		{
			name:     "different code",
			err:      ErrNotJoined,
			target:   ErrEmptyMessage,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			target:   ErrNotJoined,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(ErrUnauthorized); got != CodeUnauthorized {
		t.Errorf("Expected code %d, got %d", CodeUnauthorized, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeInternal {
		t.Errorf("Expected code %d, got %d", CodeInternal, got)
	}
}
