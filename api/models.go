package api

import (
	"github.com/GetStream/careerchat/apperror"
	"github.com/GetStream/careerchat/chat"
)

const codeUnauthorized apperror.Code = "UNAUTHORIZED"

// An ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure. RetryAfter is only set when the request
// was rate limited.
type ErrorBody struct {
	Code       apperror.Code `json:"code"`
	Message    string        `json:"message"`
	RetryAfter int           `json:"retry_after,omitempty"`
}

// An ItemsResponse wraps an unpaginated list.
type ItemsResponse[T any] struct {
	Items []T `json:"items"`
}

// A SendResponse holds the stored user message and the assistant's answer.
type SendResponse struct {
	UserMessage      chat.Message `json:"user_message"`
	AssistantMessage chat.Message `json:"assistant_message"`
}
