package chat

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

const (
	MaxContentLength = 4000
	MaxTitleLength   = 100

	MaxPageSize            = 100
	DefaultMessagePageSize = 50
	DefaultSessionPageSize = 20
	DefaultSearchLimit     = 20
	DefaultWindowSize      = 20
)

// A Session is a conversation owned by a single user. MessageCount and
// LastMessageAt are derived from the current message set on every read.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	MessageCount  int        `json:"message_count"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// A Message represents a persisted message in a session.
type Message struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	Edited     bool       `json:"edited"`
	EditedAt   *time.Time `json:"edited_at"`
	Bookmarked bool       `json:"bookmarked"`
	ReadAt     *time.Time `json:"read_at"`

	// Reactions holds the raw rows loaded by the store. Callers see
	// Summary, computed for the requesting user.
	Reactions []Reaction        `json:"-"`
	Summary   []ReactionSummary `json:"reactions"`
}

// A Reaction is one user's emoji on a message.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// A ReactionSummary aggregates the reactions of one emoji on a message.
type ReactionSummary struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	ReactedByMe bool   `json:"reacted_by_me"`
}

// EditHistory records one edit of a message. Rows are append-only.
type EditHistory struct {
	ID              string    `json:"id"`
	MessageID       string    `json:"message_id"`
	PreviousContent string    `json:"previous_content"`
	NewContent      string    `json:"new_content"`
	EditedAt        time.Time `json:"edited_at"`
}

// A Page is one slice of a keyset-paginated collection.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}
