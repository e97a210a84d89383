package postgres

import (
	"time"

	"github.com/GetStream/careerchat/chat"
	"github.com/uptrace/bun"
)

// A session represents a chat session in the database. MessageCount and
// LastMessageAt are computed by the select that loads it.
type session struct {
	bun.BaseModel `bun:"table:chat_sessions,alias:s"`

	ID            string     `bun:",pk,type:uuid"`
	UserID        string     `bun:",notnull"`
	Title         string     `bun:",notnull"`
	CreatedAt     time.Time  `bun:",notnull"`
	UpdatedAt     time.Time  `bun:",notnull"`
	MessageCount  int        `bun:",scanonly"`
	LastMessageAt *time.Time `bun:",scanonly"`
}

// A message represents a message in the database.
type message struct {
	bun.BaseModel `bun:"table:chat_messages,alias:m"`

	ID         string     `bun:",pk,type:uuid"`
	SessionID  string     `bun:",notnull,type:uuid"`
	Role       string     `bun:",notnull"`
	Content    string     `bun:",notnull"`
	CreatedAt  time.Time  `bun:",notnull"`
	Edited     bool       `bun:",notnull"`
	EditedAt   *time.Time
	Bookmarked bool       `bun:",notnull"`
	ReadAt     *time.Time
	Reactions  []reaction `bun:"rel:has-many,join:id=message_id"`
}

type reaction struct {
	bun.BaseModel `bun:"table:message_reactions,alias:r"`

	ID        string    `bun:",pk,type:uuid"`
	MessageID string    `bun:",notnull,type:uuid"`
	UserID    string    `bun:",notnull"`
	Emoji     string    `bun:",notnull"`
	CreatedAt time.Time `bun:",notnull"`
}

type editHistory struct {
	bun.BaseModel `bun:"table:message_edit_history,alias:h"`

	ID              string    `bun:",pk,type:uuid"`
	MessageID       string    `bun:",notnull,type:uuid"`
	PreviousContent string    `bun:",notnull"`
	NewContent      string    `bun:",notnull"`
	EditedAt        time.Time `bun:",notnull"`
}

func (s session) APISession() chat.Session {
	return chat.Session{
		ID:            s.ID,
		UserID:        s.UserID,
		Title:         s.Title,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		MessageCount:  s.MessageCount,
		LastMessageAt: s.LastMessageAt,
	}
}

func (m message) APIMessage() chat.Message {
	reactions := make([]chat.Reaction, len(m.Reactions))
	for i, r := range m.Reactions {
		reactions[i] = r.APIReaction()
	}

	return chat.Message{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Role:       chat.Role(m.Role),
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
		Edited:     m.Edited,
		EditedAt:   m.EditedAt,
		Bookmarked: m.Bookmarked,
		ReadAt:     m.ReadAt,
		Reactions:  reactions,
	}
}

func (r reaction) APIReaction() chat.Reaction {
	return chat.Reaction{
		ID:        r.ID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		CreatedAt: r.CreatedAt,
	}
}

func (h editHistory) APIEditHistory() chat.EditHistory {
	return chat.EditHistory{
		ID:              h.ID,
		MessageID:       h.MessageID,
		PreviousContent: h.PreviousContent,
		NewContent:      h.NewContent,
		EditedAt:        h.EditedAt,
	}
}
