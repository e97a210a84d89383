// Package chat implements ownership-scoped access to chat sessions and
// their messages: keyset pagination, the conversation window handed to the
// completion service, edits with history, read receipts, reactions and
// bookmarks.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GetStream/careerchat/apperror"
)

// Service provides the chat operations. Every operation takes the ID of the
// authenticated caller and only ever touches data that caller owns.
type Service struct {
	Store     Store
	Completer Completer
	Logger    *slog.Logger

	// Guard defaults to a StoreGuard over Store.
	Guard Guard
	// Invalidator, when set, is told about stale query families after
	// every mutation.
	Invalidator Invalidator
	// Cache, when set, serves first pages of ListMessages. It should be
	// the Invalidator too, or be cleared by it.
	Cache PageCache
	// WindowSize is the default number of messages handed to the
	// Completer. Defaults to DefaultWindowSize.
	WindowSize int
	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Service) guard() Guard {
	if s.Guard != nil {
		return s.Guard
	}
	return StoreGuard{Store: s.Store}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Service) windowSize() int {
	if s.WindowSize > 0 {
		return s.WindowSize
	}
	return DefaultWindowSize
}

// invalidate reports stale keys to the request's Collector and to the
// Invalidator. A failing Invalidator only gets logged, the mutation has
// already been committed.
func (s *Service) invalidate(ctx context.Context, keys ...Key) {
	if c := collectorFrom(ctx); c != nil {
		c.add(keys...)
	}
	if s.Invalidator == nil {
		return
	}
	if err := s.Invalidator.Invalidate(ctx, keys...); err != nil {
		s.logger().Error("Could not invalidate cache", "keys", keys, "error", err.Error())
	}
}

// CreateSession starts a new, empty session for userID.
func (s *Service) CreateSession(ctx context.Context, userID, title string) (Session, error) {
	if userID == "" {
		return Session{}, apperror.Validation("user", "must not be empty")
	}
	title, err := validateTitle(title)
	if err != nil {
		return Session{}, err
	}

	now := s.now()
	sess, err := s.Store.InsertSession(ctx, Session{
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Session{}, apperror.Internal("insert session", err)
	}

	s.invalidate(ctx, SessionsKey(userID))
	return sess, nil
}

// GetSession returns a session with its derived message count.
func (s *Service) GetSession(ctx context.Context, sessionID, userID string) (Session, error) {
	return s.guard().Session(ctx, sessionID, userID)
}

// ListSessions returns the caller's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, userID string, limit int, cursor string) (Page[Session], error) {
	fetch := func(ctx context.Context, after string, n int) ([]Session, error) {
		return s.Store.ListSessions(ctx, userID, after, n)
	}
	page, err := Paginate(ctx, fetch, sessionCursor, ClampLimit(limit, DefaultSessionPageSize), cursor)
	if err != nil {
		return Page[Session]{}, apperror.Internal("list sessions", err)
	}
	return page, nil
}

// RenameSession changes the title of a session. An empty title clears it.
func (s *Service) RenameSession(ctx context.Context, sessionID, userID, title string) (Session, error) {
	title, err := validateTitle(title)
	if err != nil {
		return Session{}, err
	}
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return Session{}, err
	}

	sess, err := s.Store.UpdateSession(ctx, SessionUpdate{
		SessionFilter: SessionFilter{ID: sessionID, OwnerID: userID},
		Title:         title,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		return Session{}, notFoundOr(err, errSessionNotFound, "update session")
	}

	s.invalidate(ctx, SessionsKey(userID), SessionKey(sessionID))
	return sess, nil
}

// DeleteSession removes a session together with its messages, reactions
// and edit history.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID string) error {
	if _, err := s.guard().Session(ctx, sessionID, userID); err != nil {
		return err
	}
	err := s.Store.DeleteSession(ctx, SessionFilter{ID: sessionID, OwnerID: userID})
	if err != nil {
		return notFoundOr(err, errSessionNotFound, "delete session")
	}

	s.invalidate(ctx, SessionsKey(userID), SessionKey(sessionID), MessagesKey(sessionID))
	return nil
}

func sessionCursor(s Session) string { return s.ID }
func messageCursor(m Message) string { return m.ID }

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", apperror.Validation("title", "must be at most 100 characters")
	}
	return title, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperror.Validation("content", "must not be empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperror.Validation("content", "must be at most 4000 characters")
	}
	return nil
}

// isNoRows reports whether err is the store's ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, ErrNoRows)
}
