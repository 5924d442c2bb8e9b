package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestEngineError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Model not loaded",
			code:      ErrCodeModelNotLoaded,
			message:   "scoring requested before any model was trained",
			details:   "train or load a model before calling score",
			requestID: "req-123",
		},
		{
			name:      "Training failed",
			code:      ErrCodeTrainingFailed,
			message:   "gradient boosting fit did not converge",
			details:   "sample set contained a single distinct label",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewEngineError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}

			if err.Message != tt.message {
				t.Errorf("Expected message %s, got %s", tt.message, err.Message)
			}

			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}

			// Check that timestamp is recent (within last minute)
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid training data", ErrInvalidTrainingData, ErrCodeInvalidTrainingData},
		{"training failed", ErrTrainingFailed, ErrCodeTrainingFailed},
		{"model not loaded", ErrModelNotLoaded, ErrCodeModelNotLoaded},
		{"wrapped sentinel", fmt.Errorf("train: %w", ErrTrainingFailed), ErrCodeTrainingFailed},
		{"unknown", errors.New("boom"), ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeForError(tt.err); got != tt.want {
				t.Errorf("CodeForError() = %s, want %s", got, tt.want)
			}
		})
	}
}
