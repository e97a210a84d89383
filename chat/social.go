package chat

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/GetStream/careerchat/apperror"
)

const maxEmojiLength = 16

// AddReaction adds the caller's emoji to a message. Adding the same emoji
// twice fails with a Conflict.
func (s *Service) AddReaction(ctx context.Context, messageID, userID, emoji string) (Reaction, error) {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return Reaction{}, err
	}
	msg, err := s.guard().Message(ctx, messageID, "", userID)
	if err != nil {
		return Reaction{}, err
	}

	r, err := s.Store.InsertReaction(ctx, Reaction{
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: s.now(),
	})
	switch {
	case errors.Is(err, ErrDuplicate):
		return Reaction{}, apperror.Conflict("reaction already exists")
	case isNoRows(err):
		return Reaction{}, errMessageNotFound
	case err != nil:
		return Reaction{}, apperror.Internal("insert reaction", err)
	}

	s.invalidate(ctx, MessagesKey(msg.SessionID))
	return r, nil
}

// RemoveReaction removes the caller's emoji from a message. Removing a
// reaction that does not exist succeeds.
func (s *Service) RemoveReaction(ctx context.Context, messageID, userID, emoji string) error {
	emoji, err := validateEmoji(emoji)
	if err != nil {
		return err
	}
	msg, err := s.guard().Message(ctx, messageID, "", userID)
	if err != nil {
		return err
	}

	err = s.Store.DeleteReaction(ctx, Reaction{MessageID: msg.ID, UserID: userID, Emoji: emoji})
	if isNoRows(err) {
		return nil
	}
	if err != nil {
		return apperror.Internal("delete reaction", err)
	}

	s.invalidate(ctx, MessagesKey(msg.SessionID))
	return nil
}

// ToggleBookmark flips the bookmark flag of a message and returns the new
// value.
func (s *Service) ToggleBookmark(ctx context.Context, messageID, userID string) (bool, error) {
	msg, err := s.guard().Message(ctx, messageID, "", userID)
	if err != nil {
		return false, err
	}
	on, err := s.Store.ToggleBookmark(ctx, MessageFilter{ID: msg.ID, SessionID: msg.SessionID, OwnerID: userID})
	if err != nil {
		return false, notFoundOr(err, errMessageNotFound, "toggle bookmark")
	}

	s.invalidate(ctx, MessagesKey(msg.SessionID))
	return on, nil
}

// Summarize groups reactions by emoji, counting distinct users and flagging
// whether userID is one of them. The result is ordered by count, then emoji.
func Summarize(reactions []Reaction, userID string) []ReactionSummary {
	users := make(map[string]map[string]struct{})
	for _, r := range reactions {
		if users[r.Emoji] == nil {
			users[r.Emoji] = make(map[string]struct{})
		}
		users[r.Emoji][r.UserID] = struct{}{}
	}

	out := make([]ReactionSummary, 0, len(users))
	for emoji, set := range users {
		_, mine := set[userID]
		out = append(out, ReactionSummary{Emoji: emoji, Count: len(set), ReactedByMe: mine})
	}
	slices.SortFunc(out, func(a, b ReactionSummary) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Emoji, b.Emoji)
	})
	return out
}

func withSummary(m Message, userID string) Message {
	m.Summary = Summarize(m.Reactions, userID)
	return m
}

func validateEmoji(emoji string) (string, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", apperror.Validation("emoji", "must not be empty")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLength {
		return "", apperror.Validation("emoji", "must be at most 16 characters")
	}
	return emoji, nil
}
