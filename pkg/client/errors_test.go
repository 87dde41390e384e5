package client

import (
	"errors"
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
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
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

func TestRemoteQueryError_Error(t *testing.T) {
	tests := []struct {
		name     string
		queryErr *RemoteQueryError
		expected string
	}{
		{
			name: "error with wrapped error",
			queryErr: &RemoteQueryError{
				Endpoint:   ActionSlotsByDate,
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection refused"),
			},
			expected: "remote query GetProviderSlotsByDate failed (server, status 500): internal server error: connection refused",
		},
		{
			name: "error without wrapped error",
			queryErr: &RemoteQueryError{
				Endpoint:   ActionProviderList,
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "not found",
			},
			expected: "remote query GetAvilableApptProvidersList failed (client, status 404): not found",
		},
		{
			name: "network error without status",
			queryErr: &RemoteQueryError{
				Endpoint:   ActionSlotsByDate,
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("dial tcp: timeout"),
			},
			expected: "remote query GetProviderSlotsByDate failed (network, status 0): request failed: dial tcp: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.queryErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRemoteQueryError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &RemoteQueryError{
		Endpoint:   ActionSlotsByDate,
		ErrorClass: ErrorClassNetwork,
		Err:        inner,
	}

	if !errors.Is(err, inner) {
		t.Error("errors.Is should find the wrapped error")
	}

	var rqe *RemoteQueryError
	if !errors.As(error(err), &rqe) {
		t.Error("errors.As should match *RemoteQueryError")
	}
}
