// Package chattest provides an in-memory chat.Store for tests.
package chattest

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/GetStream/careerchat/chat"
	"github.com/google/uuid"
)

// Store is a chat.Store that keeps everything in memory. The zero value is
// ready to use.
type Store struct {
	mu        sync.Mutex
	seq       int64
	sessions  map[string]*session
	messages  map[string]*message
	reactions []chat.Reaction
	history   []chat.EditHistory

	// Err, when set, is returned by every method.
	Err error
}

type session struct {
	chat.Session
	seq int64
}

type message struct {
	chat.Message
	seq int64
}

var _ chat.Store = (*Store)(nil)

func (s *Store) init() {
	if s.sessions == nil {
		s.sessions = make(map[string]*session)
		s.messages = make(map[string]*message)
	}
}

func (s *Store) next() (string, int64) {
	s.seq++
	return uuid.Must(uuid.NewV7()).String(), s.seq
}

func (s *Store) InsertSession(_ context.Context, sess chat.Session) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Session{}, s.Err
	}
	s.init()

	row := &session{Session: sess}
	row.ID, row.seq = s.next()
	s.sessions[row.ID] = row
	return s.sessionView(row), nil
}

func (s *Store) FindSession(_ context.Context, f chat.SessionFilter) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Session{}, s.Err
	}
	row, ok := s.session(f.ID, f.OwnerID)
	if !ok {
		return chat.Session{}, chat.ErrNoRows
	}
	return s.sessionView(row), nil
}

func (s *Store) ListSessions(_ context.Context, userID, after string, n int) ([]chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var rows []*session
	for _, row := range s.sessions {
		if row.UserID == userID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b *session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	if after != "" {
		i := slices.IndexFunc(rows, func(r *session) bool { return r.ID == after })
		if i < 0 {
			return nil, nil
		}
		rows = rows[i+1:]
	}

	var out []chat.Session
	for _, row := range rows {
		if len(out) == n {
			break
		}
		out = append(out, s.sessionView(row))
	}
	return out, nil
}

func (s *Store) UpdateSession(_ context.Context, u chat.SessionUpdate) (chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Session{}, s.Err
	}
	row, ok := s.session(u.ID, u.OwnerID)
	if !ok {
		return chat.Session{}, chat.ErrNoRows
	}
	row.Title = u.Title
	row.UpdatedAt = u.UpdatedAt
	return s.sessionView(row), nil
}

func (s *Store) DeleteSession(_ context.Context, f chat.SessionFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	row, ok := s.session(f.ID, f.OwnerID)
	if !ok {
		return chat.ErrNoRows
	}
	for id, m := range s.messages {
		if m.SessionID == row.ID {
			s.deleteMessage(id)
		}
	}
	delete(s.sessions, row.ID)
	return nil
}

func (s *Store) InsertMessage(_ context.Context, m chat.Message) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Message{}, s.Err
	}
	if _, ok := s.session(m.SessionID, ""); !ok {
		return chat.Message{}, chat.ErrNoRows
	}

	row := &message{Message: m}
	row.ID, row.seq = s.next()
	s.messages[row.ID] = row
	return s.messageView(row), nil
}

func (s *Store) FindMessage(_ context.Context, f chat.MessageFilter) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Message{}, s.Err
	}
	row, ok := s.message(f)
	if !ok {
		return chat.Message{}, chat.ErrNoRows
	}
	return s.messageView(row), nil
}

func (s *Store) ListMessages(_ context.Context, q chat.MessageQuery) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	rows := s.sessionMessages(q.SessionID)
	if q.Newest {
		slices.Reverse(rows)
	}
	if q.After != "" {
		i := slices.IndexFunc(rows, func(r *message) bool { return r.ID == q.After })
		if i < 0 {
			return nil, nil
		}
		rows = rows[i+1:]
	}

	needle := strings.ToLower(q.Contains)
	var out []chat.Message
	for _, row := range rows {
		if len(out) == q.Limit {
			break
		}
		if needle != "" && !strings.Contains(strings.ToLower(row.Content), needle) {
			continue
		}
		out = append(out, s.messageView(row))
	}
	return out, nil
}

func (s *Store) CountMessages(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	return len(s.sessionMessages(sessionID)), nil
}

func (s *Store) EditMessage(_ context.Context, f chat.MessageFilter, content string, at time.Time) (chat.Message, chat.EditHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Message{}, chat.EditHistory{}, s.Err
	}
	row, ok := s.message(f)
	if !ok {
		return chat.Message{}, chat.EditHistory{}, chat.ErrNoRows
	}

	id, _ := s.next()
	h := chat.EditHistory{
		ID:              id,
		MessageID:       row.ID,
		PreviousContent: row.Content,
		NewContent:      content,
		EditedAt:        at,
	}
	s.history = append(s.history, h)

	row.Content = content
	row.Edited = true
	row.EditedAt = &at
	return s.messageView(row), h, nil
}

func (s *Store) DeleteMessage(_ context.Context, f chat.MessageFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	row, ok := s.message(f)
	if !ok {
		return chat.ErrNoRows
	}
	s.deleteMessage(row.ID)
	return nil
}

func (s *Store) MarkRead(_ context.Context, f chat.MessageFilter, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}

	var rows []*message
	if f.ID != "" {
		if row, ok := s.message(f); ok {
			rows = append(rows, row)
		}
	} else if _, ok := s.session(f.SessionID, f.OwnerID); ok {
		rows = s.sessionMessages(f.SessionID)
	}

	n := 0
	for _, row := range rows {
		if row.ReadAt == nil {
			row.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (s *Store) ToggleBookmark(_ context.Context, f chat.MessageFilter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	row, ok := s.message(f)
	if !ok {
		return false, chat.ErrNoRows
	}
	row.Bookmarked = !row.Bookmarked
	return row.Bookmarked, nil
}

func (s *Store) ListEditHistory(_ context.Context, messageID string) ([]chat.EditHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []chat.EditHistory
	for _, h := range s.history {
		if h.MessageID == messageID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) InsertReaction(_ context.Context, r chat.Reaction) (chat.Reaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return chat.Reaction{}, s.Err
	}
	if _, ok := s.messages[r.MessageID]; !ok {
		return chat.Reaction{}, chat.ErrNoRows
	}
	if slices.ContainsFunc(s.reactions, sameReaction(r)) {
		return chat.Reaction{}, chat.ErrDuplicate
	}
	r.ID, _ = s.next()
	s.reactions = append(s.reactions, r)
	return r, nil
}

func (s *Store) DeleteReaction(_ context.Context, r chat.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	n := len(s.reactions)
	s.reactions = slices.DeleteFunc(s.reactions, sameReaction(r))
	if len(s.reactions) == n {
		return chat.ErrNoRows
	}
	return nil
}

// HistoryLen returns the number of edit history rows across all messages.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// ReactionLen returns the number of stored reactions.
func (s *Store) ReactionLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reactions)
}

func sameReaction(r chat.Reaction) func(chat.Reaction) bool {
	return func(o chat.Reaction) bool {
		return o.MessageID == r.MessageID && o.UserID == r.UserID && o.Emoji == r.Emoji
	}
}

func (s *Store) session(id, ownerID string) (*session, bool) {
	row, ok := s.sessions[id]
	if !ok || (ownerID != "" && row.UserID != ownerID) {
		return nil, false
	}
	return row, true
}

func (s *Store) message(f chat.MessageFilter) (*message, bool) {
	row, ok := s.messages[f.ID]
	if !ok || (f.SessionID != "" && row.SessionID != f.SessionID) {
		return nil, false
	}
	if _, ok := s.session(row.SessionID, f.OwnerID); !ok {
		return nil, false
	}
	return row, true
}

// sessionMessages returns the messages of a session oldest first.
func (s *Store) sessionMessages(sessionID string) []*message {
	var rows []*message
	for _, row := range s.messages {
		if row.SessionID == sessionID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b *message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	return rows
}

func (s *Store) deleteMessage(id string) {
	delete(s.messages, id)
	s.reactions = slices.DeleteFunc(s.reactions, func(r chat.Reaction) bool { return r.MessageID == id })
	s.history = slices.DeleteFunc(s.history, func(h chat.EditHistory) bool { return h.MessageID == id })
}

func (s *Store) sessionView(row *session) chat.Session {
	out := row.Session
	out.MessageCount = 0
	out.LastMessageAt = nil
	for _, m := range s.messages {
		if m.SessionID != row.ID {
			continue
		}
		out.MessageCount++
		if out.LastMessageAt == nil || m.CreatedAt.After(*out.LastMessageAt) {
			at := m.CreatedAt
			out.LastMessageAt = &at
		}
	}
	return out
}

func (s *Store) messageView(row *message) chat.Message {
	out := row.Message
	out.Reactions = nil
	for _, r := range s.reactions {
		if r.MessageID == row.ID {
			out.Reactions = append(out.Reactions, r)
		}
	}
	return out
}
