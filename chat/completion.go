package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/GetStream/careerchat/apperror"
)

var errNoCompleter = errors.New("no completer configured")

// Send stores the caller's message, asks the Completer for an answer based
// on the conversation window and stores the answer as an assistant message.
// When the completion fails the user message is kept.
func (s *Service) Send(ctx context.Context, sessionID, userID, content string) (Message, Message, error) {
	user, err := s.CreateMessage(ctx, sessionID, userID, RoleUser, content)
	if err != nil {
		return Message{}, Message{}, err
	}

	window, err := s.window(ctx, sessionID, "", 0)
	if err != nil {
		return user, Message{}, err
	}
	answer, err := s.complete(ctx, window)
	if err != nil {
		return user, Message{}, err
	}

	assistant, err := s.CreateMessage(ctx, sessionID, userID, RoleAssistant, answer)
	if err != nil {
		return user, Message{}, err
	}
	return user, assistant, nil
}

// Regenerate asks the Completer for a new answer to the conversation that
// precedes an assistant message and replaces the message's content with it.
// The replaced answer is kept in the message's edit history.
func (s *Service) Regenerate(ctx context.Context, messageID, sessionID, userID string) (Message, error) {
	msg, err := s.guard().Message(ctx, messageID, sessionID, userID)
	if err != nil {
		return Message{}, err
	}
	if msg.Role != RoleAssistant {
		return Message{}, apperror.Validation("message", "must be an assistant message")
	}

	window, err := s.window(ctx, msg.SessionID, msg.ID, 0)
	if err != nil {
		return Message{}, err
	}
	answer, err := s.complete(ctx, window)
	if err != nil {
		return Message{}, err
	}
	return s.edit(ctx, msg.ID, msg.SessionID, userID, answer)
}

func (s *Service) complete(ctx context.Context, window []Message) (string, error) {
	if s.Completer == nil {
		return "", apperror.Internal("complete", errNoCompleter)
	}
	answer, err := s.Completer.Complete(ctx, window)
	if err != nil {
		return "", apperror.Internal("complete", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", apperror.Internal("complete", errors.New("empty completion"))
	}
	return truncate(answer, MaxContentLength), nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
