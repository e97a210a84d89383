package chat

import (
	"context"
	"slices"
	"strings"

	"github.com/GetStream/careerchat/apperror"
)

// CreateMessage appends a message to a session. User messages require the
// caller to own the session. Assistant messages are written by the system
// right after a user message and skip the ownership check.
func (s *Service) CreateMessage(ctx context.Context, sessionID, userID string, role Role, content string) (Message, error) {
	if !role.Valid() {
		return Message{}, apperror.Validation("role", "must be USER or ASSISTANT")
	}
	if err := validateContent(content); err != nil {
		return Message{}, err
	}
	if role == RoleUser {
		if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
			return Message{}, err
		}
	}

	msg, err := s.Store.InsertMessage(ctx, Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	})
	if isNoRows(err) {
		return Message{}, errSessionNotFound
	}
	if err != nil {
		return Message{}, apperror.Internal("insert message", err)
	}

	keys := []Key{MessagesKey(sessionID), SessionKey(sessionID)}
	if userID != "" {
		keys = append(keys, SessionsKey(userID))
	}
	s.invalidate(ctx, keys...)
	return withSummary(msg, userID), nil
}

// ListMessages returns a page of a session's messages, oldest first.
func (s *Service) ListMessages(ctx context.Context, sessionID, userID string, limit int, cursor string) (Page[Message], error) {
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return Page[Message]{}, err
	}

	limit = ClampLimit(limit, DefaultMessagePageSize)
	cacheable := cursor == "" && s.Cache != nil
	var version int64
	if cacheable {
		page, ok, err := s.Cache.Page(ctx, sessionID, limit)
		if err != nil {
			s.logger().Error("Could not read cached page", "session_id", sessionID, "error", err.Error())
		}
		if ok {
			return summarizePage(page, userID), nil
		}
		// The version is read before the store so that a write racing
		// with this read keeps its stale result out of the cache.
		version, err = s.Cache.Version(ctx, sessionID)
		if err != nil {
			s.logger().Error("Could not read cache version", "session_id", sessionID, "error", err.Error())
			cacheable = false
		}
	}

	fetch := func(ctx context.Context, after string, n int) ([]Message, error) {
		return s.Store.ListMessages(ctx, MessageQuery{SessionID: sessionID, After: after, Limit: n})
	}
	page, err := Paginate(ctx, fetch, messageCursor, limit, cursor)
	if err != nil {
		return Page[Message]{}, apperror.Internal("list messages", err)
	}
	page = summarizePage(page, userID)

	if cacheable {
		if err := s.Cache.SetPage(ctx, sessionID, limit, version, page); err != nil {
			s.logger().Error("Could not cache page", "session_id", sessionID, "error", err.Error())
		}
	}
	return page, nil
}

func summarizePage(page Page[Message], userID string) Page[Message] {
	for i := range page.Items {
		page.Items[i] = withSummary(page.Items[i], userID)
	}
	return page
}

// GetMessage returns a single message of a session.
func (s *Service) GetMessage(ctx context.Context, messageID, sessionID, userID string) (Message, error) {
	msg, err := s.guard().Message(ctx, messageID, sessionID, userID)
	if err != nil {
		return Message{}, err
	}
	return withSummary(msg, userID), nil
}

// Context returns the newest size messages of a session in chronological
// order, ready to be handed to a Completer. A non-positive size selects the
// service's WindowSize.
func (s *Service) Context(ctx context.Context, sessionID, userID string, size int) ([]Message, error) {
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return s.window(ctx, sessionID, "", size)
}

// window loads the newest size messages older than before (or the newest
// overall when before is empty) and reverses them to oldest first.
func (s *Service) window(ctx context.Context, sessionID, before string, size int) ([]Message, error) {
	msgs, err := s.Store.ListMessages(ctx, MessageQuery{
		SessionID: sessionID,
		After:     before,
		Limit:     ClampLimit(size, s.windowSize()),
		Newest:    true,
	})
	if err != nil {
		return nil, apperror.Internal("load context", err)
	}
	slices.Reverse(msgs)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

// EditMessage replaces the content of a message and records the previous
// content in its edit history.
func (s *Service) EditMessage(ctx context.Context, messageID, sessionID, userID, content string) (Message, error) {
	if err := validateContent(content); err != nil {
		return Message{}, err
	}
	if _, err := s.guard().Message(ctx, messageID, sessionID, userID); err != nil {
		return Message{}, err
	}
	return s.edit(ctx, messageID, sessionID, userID, content)
}

func (s *Service) edit(ctx context.Context, messageID, sessionID, userID, content string) (Message, error) {
	f := MessageFilter{ID: messageID, SessionID: sessionID, OwnerID: userID}
	msg, _, err := s.Store.EditMessage(ctx, f, content, s.now())
	if err != nil {
		return Message{}, notFoundOr(err, errMessageNotFound, "edit message")
	}

	s.invalidate(ctx, MessagesKey(msg.SessionID), SessionKey(msg.SessionID))
	return withSummary(msg, userID), nil
}

// DeleteMessage removes a message with its reactions and edit history.
func (s *Service) DeleteMessage(ctx context.Context, messageID, sessionID, userID string) error {
	if _, err := s.guard().Message(ctx, messageID, sessionID, userID); err != nil {
		return err
	}
	err := s.Store.DeleteMessage(ctx, MessageFilter{ID: messageID, SessionID: sessionID, OwnerID: userID})
	if err != nil {
		return notFoundOr(err, errMessageNotFound, "delete message")
	}

	s.invalidate(ctx, MessagesKey(sessionID), SessionKey(sessionID), SessionsKey(userID))
	return nil
}

// CountMessages returns the number of messages in a session.
func (s *Service) CountMessages(ctx context.Context, sessionID, userID string) (int, error) {
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return 0, err
	}
	n, err := s.Store.CountMessages(ctx, sessionID)
	if err != nil {
		return 0, apperror.Internal("count messages", err)
	}
	return n, nil
}

// SearchMessages returns the messages of a session whose content contains
// query, ignoring case, newest first.
func (s *Service) SearchMessages(ctx context.Context, sessionID, userID, query string, limit int) ([]Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("query", "must not be empty")
	}
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return nil, err
	}

	msgs, err := s.Store.ListMessages(ctx, MessageQuery{
		SessionID: sessionID,
		Limit:     ClampLimit(limit, DefaultSearchLimit),
		Newest:    true,
		Contains:  query,
	})
	if err != nil {
		return nil, apperror.Internal("search messages", err)
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = withSummary(m, userID)
	}
	return out, nil
}

// MarkRead sets the read time of a message. Marking an already read message
// succeeds and keeps the original read time.
func (s *Service) MarkRead(ctx context.Context, messageID, sessionID, userID string) (Message, error) {
	msg, err := s.guard().Message(ctx, messageID, sessionID, userID)
	if err != nil {
		return Message{}, err
	}
	if msg.ReadAt != nil {
		return withSummary(msg, userID), nil
	}

	f := MessageFilter{ID: messageID, SessionID: sessionID, OwnerID: userID}
	n, err := s.Store.MarkRead(ctx, f, s.now())
	if err != nil {
		return Message{}, apperror.Internal("mark message read", err)
	}
	// Reload either way: a concurrent call may have won the update.
	msg, err = s.guard().Message(ctx, messageID, sessionID, userID)
	if err != nil {
		return Message{}, err
	}
	if n > 0 {
		s.invalidate(ctx, MessagesKey(msg.SessionID))
	}
	return withSummary(msg, userID), nil
}

// MarkSessionRead marks every unread message of a session as read and
// returns how many changed.
func (s *Service) MarkSessionRead(ctx context.Context, sessionID, userID string) (int, error) {
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return 0, err
	}
	n, err := s.Store.MarkRead(ctx, MessageFilter{SessionID: sessionID, OwnerID: userID}, s.now())
	if err != nil {
		return 0, apperror.Internal("mark session read", err)
	}
	if n > 0 {
		s.invalidate(ctx, MessagesKey(sessionID), SessionKey(sessionID))
	}
	return n, nil
}

// MessageHistory returns the edit history of a message, oldest first.
func (s *Service) MessageHistory(ctx context.Context, messageID, sessionID, userID string) ([]EditHistory, error) {
	if _, err := s.guard().Message(ctx, messageID, sessionID, userID); err != nil {
		return nil, err
	}
	h, err := s.Store.ListEditHistory(ctx, messageID)
	if err != nil {
		return nil, apperror.Internal("list edit history", err)
	}
	if h == nil {
		h = []EditHistory{}
	}
	return h, nil
}
