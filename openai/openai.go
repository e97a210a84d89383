// Package openai answers chat conversations with an OpenAI compatible chat
// completion API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/GetStream/careerchat/chat"
	goopenai "github.com/sashabaranov/go-openai"
)

const DefaultModel = "gpt-4o-mini"

// SystemPrompt is sent ahead of every conversation window.
const SystemPrompt = `You are a career counselor. Help the user reason about their career:
job searches, interviews, skills, promotions and career changes. Answer in
plain, concise language and ask a clarifying question when the request is
ambiguous.`

// Config holds the completion client configuration.
type Config struct {
	APIKey string
	// BaseURL overrides the API endpoint, for OpenAI compatible providers.
	BaseURL string
	// Model defaults to DefaultModel.
	Model string
}

// Completer implements chat.Completer. A failed call is returned as is,
// without retries.
type Completer struct {
	cli   *goopenai.Client
	model string
}

var _ chat.Completer = (*Completer)(nil)

// New creates a Completer.
func New(cfg Config) *Completer {
	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Completer{
		cli:   goopenai.NewClientWithConfig(clientConfig),
		model: model,
	}
}

// Complete returns the assistant's answer to window, which holds the
// conversation oldest first.
func (c *Completer) Complete(ctx context.Context, window []chat.Message) (string, error) {
	resp, err := c.cli.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convert(window),
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func convert(window []chat.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(window)+1)
	out = append(out, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: SystemPrompt,
	})
	for _, m := range window {
		role := goopenai.ChatMessageRoleUser
		if m.Role == chat.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}
