package chat

import (
	"context"
	"errors"
	"time"
)

// Errors returned by Store implementations.
var (
	ErrNoRows    = errors.New("no rows")
	ErrDuplicate = errors.New("duplicate row")
)

// A Store provides the relational storage for sessions, messages and their
// metadata.
//
// Every filter that carries an OwnerID must apply it in the same statement
// that reads or writes the rows, so that an ownership check can never be
// stale by the time the write executes.
type Store interface {
	InsertSession(ctx context.Context, s Session) (Session, error)
	FindSession(ctx context.Context, f SessionFilter) (Session, error)
	// ListSessions returns up to n sessions of userID, newest first,
	// starting strictly after the session with ID after when set.
	ListSessions(ctx context.Context, userID, after string, n int) ([]Session, error)
	UpdateSession(ctx context.Context, u SessionUpdate) (Session, error)
	DeleteSession(ctx context.Context, f SessionFilter) error

	InsertMessage(ctx context.Context, m Message) (Message, error)
	FindMessage(ctx context.Context, f MessageFilter) (Message, error)
	ListMessages(ctx context.Context, q MessageQuery) ([]Message, error)
	CountMessages(ctx context.Context, sessionID string) (int, error)
	// EditMessage replaces the content of a message and appends one edit
	// history row in a single transaction.
	EditMessage(ctx context.Context, f MessageFilter, content string, at time.Time) (Message, EditHistory, error)
	DeleteMessage(ctx context.Context, f MessageFilter) error
	// MarkRead sets the read time of the matching unread messages and
	// returns how many rows changed.
	MarkRead(ctx context.Context, f MessageFilter, at time.Time) (int, error)
	// ToggleBookmark flips the bookmark flag and returns the new value.
	ToggleBookmark(ctx context.Context, f MessageFilter) (bool, error)
	ListEditHistory(ctx context.Context, messageID string) ([]EditHistory, error)

	InsertReaction(ctx context.Context, r Reaction) (Reaction, error)
	// DeleteReaction returns ErrNoRows when the reaction does not exist.
	DeleteReaction(ctx context.Context, r Reaction) error
}

// SessionFilter selects a single session.
type SessionFilter struct {
	ID      string
	OwnerID string
}

// SessionUpdate changes the mutable fields of a session.
type SessionUpdate struct {
	SessionFilter
	Title     string
	UpdatedAt time.Time
}

// MessageFilter selects messages. An empty ID selects every message of the
// session.
type MessageFilter struct {
	ID        string
	SessionID string
	OwnerID   string
}

// MessageQuery selects an ordered range of a session's messages.
type MessageQuery struct {
	SessionID string
	// After is the ID of the last message already seen.
	After string
	Limit int
	// Newest returns messages newest first instead of oldest first.
	Newest bool
	// Contains restricts the result to messages whose content contains
	// the string, ignoring case.
	Contains string
}

// A Completer produces the assistant's answer for a conversation window.
type Completer interface {
	Complete(ctx context.Context, window []Message) (string, error)
}

// A PageCache holds first pages of session messages. Entries must be
// dropped when the session's MessagesKey is invalidated, and the
// invalidation must change the session's Version.
type PageCache interface {
	Page(ctx context.Context, sessionID string, limit int) (Page[Message], bool, error)
	// Version returns a token that changes on every invalidation of the
	// session's messages.
	Version(ctx context.Context, sessionID string) (int64, error)
	// SetPage stores p unless the session's version is no longer version.
	// A skipped write is not an error.
	SetPage(ctx context.Context, sessionID string, limit int, version int64, p Page[Message]) error
}
