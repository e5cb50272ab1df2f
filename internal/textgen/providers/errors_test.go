package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", errors.New("Error 429, Message: quota"), true},
		{"unavailable", errors.New("UNAVAILABLE: model overloaded"), true},
		{"internal", errors.New("Error 500 INTERNAL"), true},
		{"deadline status", errors.New("DEADLINE_EXCEEDED"), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"empty", fmt.Errorf("gemini: %w", ErrEmptyResponse), true},
		{"cancelled", context.Canceled, false},
		{"bad key", errors.New("Error 400, INVALID_ARGUMENT"), false},
		{"api error 503", fmt.Errorf("call: %w", genai.APIError{Code: 503, Status: "UNAVAILABLE"}), true},
		{"api error 403", fmt.Errorf("call: %w", genai.APIError{Code: 403, Status: "PERMISSION_DENIED"}), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
