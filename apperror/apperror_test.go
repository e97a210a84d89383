package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestAs(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name       string
		err        error
		wantCode   Code
		wantPublic string
	}{
		{
			name:       "NotFound",
			err:        NotFound("session"),
			wantCode:   CodeNotFound,
			wantPublic: "Session not found",
		},
		{
			name:       "WrappedValidation",
			err:        fmt.Errorf("create: %w", Validation("content", "must not be empty")),
			wantCode:   CodeBadRequest,
			wantPublic: "Content must not be empty",
		},
		{
			name:       "Conflict",
			err:        Conflict("reaction already exists"),
			wantCode:   CodeConflict,
			wantPublic: "Reaction already exists",
		},
		{
			name:       "RateLimited",
			err:        RateLimited(42),
			wantCode:   CodeTooManyRequests,
			wantPublic: "Too many requests, please retry in 42 seconds",
		},
		{
			name:       "Foreign",
			err:        cause,
			wantCode:   CodeInternal,
			wantPublic: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := As(tt.err)
			if got.Code() != tt.wantCode {
				t.Errorf("Got code %q, want %q", got.Code(), tt.wantCode)
			}
			if got.Public() != tt.wantPublic {
				t.Errorf("Got public message %q, want %q", got.Public(), tt.wantPublic)
			}
		})
	}
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: relation chat_messages does not exist")
	err := Internal("list messages", cause)

	if !errors.Is(err, cause) {
		t.Error("Internal error does not unwrap to its cause")
	}
	if err.Public() != "Internal server error" {
		t.Errorf("Got public message %q", err.Public())
	}
}

func TestRateLimitedMinimum(t *testing.T) {
	if got := RateLimited(0).RetryAfter; got != 1 {
		t.Errorf("Got RetryAfter %d, want 1", got)
	}
}

func TestCodeOfNil(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("Got %q, want empty code", got)
	}
}
