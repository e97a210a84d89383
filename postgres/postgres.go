package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GetStream/careerchat/chat"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

var _ chat.Store = (*Postgres)(nil)

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

// Close closes the database.
func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// InsertSession inserts a session. The returned session holds the generated
// id.
func (pg *Postgres) InsertSession(ctx context.Context, s chat.Session) (chat.Session, error) {
	row := &session{
		ID:        newID(),
		UserID:    s.UserID,
		Title:     s.Title,
		CreatedAt: dbTime(s.CreatedAt),
		UpdatedAt: dbTime(s.UpdatedAt),
	}
	if _, err := pg.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return chat.Session{}, storeErr("insert", err)
	}
	return row.APISession(), nil
}

// FindSession returns a single session with its derived fields.
func (pg *Postgres) FindSession(ctx context.Context, f chat.SessionFilter) (chat.Session, error) {
	if !validIDs(f.ID) {
		return chat.Session{}, chat.ErrNoRows
	}
	var row session
	q := withDerived(pg.bun.NewSelect().Model(&row)).
		Where("s.id = ?", f.ID)
	if f.OwnerID != "" {
		q = q.Where("s.user_id = ?", f.OwnerID)
	}
	if err := q.Scan(ctx); err != nil {
		return chat.Session{}, storeErr("scan", err)
	}
	return row.APISession(), nil
}

// ListSessions returns the sessions of a user ordered by creation time in
// descending order.
func (pg *Postgres) ListSessions(ctx context.Context, userID, after string, n int) ([]chat.Session, error) {
	if !validIDs(after) {
		return nil, nil
	}
	var rows []session
	q := withDerived(pg.bun.NewSelect().Model(&rows)).
		Where("s.user_id = ?", userID).
		OrderExpr("s.created_at DESC, s.id DESC").
		Limit(n)
	if after != "" {
		q = q.Where("(s.created_at, s.id) < (SELECT c.created_at, c.id FROM chat_sessions AS c WHERE c.id = ? AND c.user_id = ?)", after, userID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, storeErr("scan", err)
	}

	out := make([]chat.Session, len(rows))
	for i, s := range rows {
		out[i] = s.APISession()
	}
	return out, nil
}

// UpdateSession changes the title of a session.
func (pg *Postgres) UpdateSession(ctx context.Context, u chat.SessionUpdate) (chat.Session, error) {
	if !validIDs(u.ID) {
		return chat.Session{}, chat.ErrNoRows
	}
	q := pg.bun.NewUpdate().
		Model(&session{Title: u.Title, UpdatedAt: dbTime(u.UpdatedAt)}).
		Column("title", "updated_at").
		Where("id = ?", u.ID)
	if u.OwnerID != "" {
		q = q.Where("user_id = ?", u.OwnerID)
	}
	if err := affected(q.Exec(ctx)); err != nil {
		return chat.Session{}, storeErr("update", err)
	}
	return pg.FindSession(ctx, u.SessionFilter)
}

// DeleteSession deletes a session. Messages, reactions and edit history go
// with it through ON DELETE CASCADE.
func (pg *Postgres) DeleteSession(ctx context.Context, f chat.SessionFilter) error {
	if !validIDs(f.ID) {
		return chat.ErrNoRows
	}
	q := pg.bun.NewDelete().
		Model((*session)(nil)).
		Where("id = ?", f.ID)
	if f.OwnerID != "" {
		q = q.Where("user_id = ?", f.OwnerID)
	}
	if err := affected(q.Exec(ctx)); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// InsertMessage inserts a message into the database. The returned message
// holds auto generated fields, such as the message id.
func (pg *Postgres) InsertMessage(ctx context.Context, m chat.Message) (chat.Message, error) {
	if !validIDs(m.SessionID) {
		return chat.Message{}, chat.ErrNoRows
	}
	row := &message{
		ID:        newID(),
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: dbTime(m.CreatedAt),
	}
	if _, err := pg.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return chat.Message{}, storeErr("insert", err)
	}
	return row.APIMessage(), nil
}

// FindMessage returns a single message with its reactions.
func (pg *Postgres) FindMessage(ctx context.Context, f chat.MessageFilter) (chat.Message, error) {
	if f.ID == "" || !validIDs(f.ID, f.SessionID) {
		return chat.Message{}, chat.ErrNoRows
	}
	var row message
	err := pg.bun.NewSelect().
		Model(&row).
		Relation("Reactions", orderReactions).
		ApplyQueryBuilder(scope(f)).
		Scan(ctx)
	if err != nil {
		return chat.Message{}, storeErr("scan", err)
	}
	return row.APIMessage(), nil
}

// ListMessages returns messages of a session in (created_at, id) order,
// ascending or, for q.Newest, descending.
func (pg *Postgres) ListMessages(ctx context.Context, q chat.MessageQuery) ([]chat.Message, error) {
	if !validIDs(q.SessionID, q.After) {
		return nil, nil
	}
	op, dir := ">", "ASC"
	if q.Newest {
		op, dir = "<", "DESC"
	}

	var rows []message
	sq := pg.bun.NewSelect().
		Model(&rows).
		Relation("Reactions", orderReactions).
		Where("m.session_id = ?", q.SessionID).
		OrderExpr(fmt.Sprintf("m.created_at %s, m.id %s", dir, dir)).
		Limit(q.Limit)
	if q.After != "" {
		sq = sq.Where(fmt.Sprintf("(m.created_at, m.id) %s (SELECT c.created_at, c.id FROM chat_messages AS c WHERE c.id = ? AND c.session_id = ?)", op), q.After, q.SessionID)
	}
	if q.Contains != "" {
		sq = sq.Where("m.content ILIKE ? ESCAPE '!'", "%"+escapeLike(q.Contains)+"%")
	}
	if err := sq.Scan(ctx); err != nil {
		return nil, storeErr("scan", err)
	}

	out := make([]chat.Message, len(rows))
	for i, m := range rows {
		out[i] = m.APIMessage()
	}
	return out, nil
}

// CountMessages returns the number of messages in a session.
func (pg *Postgres) CountMessages(ctx context.Context, sessionID string) (int, error) {
	if !validIDs(sessionID) {
		return 0, nil
	}
	n, err := pg.bun.NewSelect().
		Model((*message)(nil)).
		Where("m.session_id = ?", sessionID).
		Count(ctx)
	if err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// EditMessage locks the message row, replaces its content and appends the
// previous content to the edit history, all in one transaction.
func (pg *Postgres) EditMessage(ctx context.Context, f chat.MessageFilter, content string, at time.Time) (chat.Message, chat.EditHistory, error) {
	if f.ID == "" || !validIDs(f.ID, f.SessionID) {
		return chat.Message{}, chat.EditHistory{}, chat.ErrNoRows
	}

	var (
		edited message
		h      editHistory
	)
	at = dbTime(at)
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row message
		err := tx.NewSelect().
			Model(&row).
			ApplyQueryBuilder(scope(f)).
			For("UPDATE OF m").
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("lock: %w", err)
		}

		h = editHistory{
			ID:              newID(),
			MessageID:       row.ID,
			PreviousContent: row.Content,
			NewContent:      content,
			EditedAt:        at,
		}
		row.Content = content
		row.Edited = true
		row.EditedAt = &at

		_, err = tx.NewUpdate().
			Model(&row).
			Column("content", "edited", "edited_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		if _, err := tx.NewInsert().Model(&h).Exec(ctx); err != nil {
			return fmt.Errorf("insert history: %w", err)
		}

		return tx.NewSelect().
			Model(&edited).
			Relation("Reactions", orderReactions).
			Where("m.id = ?", row.ID).
			Scan(ctx)
	})
	if err != nil {
		return chat.Message{}, chat.EditHistory{}, storeErr("edit", err)
	}
	return edited.APIMessage(), h.APIEditHistory(), nil
}

// DeleteMessage deletes a message. Reactions and edit history go with it
// through ON DELETE CASCADE.
func (pg *Postgres) DeleteMessage(ctx context.Context, f chat.MessageFilter) error {
	if f.ID == "" || !validIDs(f.ID, f.SessionID) {
		return chat.ErrNoRows
	}
	res, err := pg.bun.NewDelete().
		Model((*message)(nil)).
		ApplyQueryBuilder(scope(f)).
		Exec(ctx)
	if err := affected(res, err); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

// MarkRead sets read_at on the matching messages that are still unread.
func (pg *Postgres) MarkRead(ctx context.Context, f chat.MessageFilter, at time.Time) (int, error) {
	if (f.ID == "" && f.SessionID == "") || !validIDs(f.ID, f.SessionID) {
		return 0, nil
	}
	res, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("read_at = ?", dbTime(at)).
		ApplyQueryBuilder(scope(f)).
		Where("m.read_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, storeErr("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ToggleBookmark flips the bookmark flag in place and returns the stored
// value.
func (pg *Postgres) ToggleBookmark(ctx context.Context, f chat.MessageFilter) (bool, error) {
	if f.ID == "" || !validIDs(f.ID, f.SessionID) {
		return false, chat.ErrNoRows
	}
	var on bool
	res, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("bookmarked = NOT m.bookmarked").
		ApplyQueryBuilder(scope(f)).
		Returning("m.bookmarked").
		Exec(ctx, &on)
	if err := affected(res, err); err != nil {
		return false, storeErr("update", err)
	}
	return on, nil
}

// ListEditHistory returns the edit history of a message, oldest first.
func (pg *Postgres) ListEditHistory(ctx context.Context, messageID string) ([]chat.EditHistory, error) {
	if !validIDs(messageID) {
		return nil, nil
	}
	var rows []editHistory
	err := pg.bun.NewSelect().
		Model(&rows).
		Where("h.message_id = ?", messageID).
		OrderExpr("h.edited_at ASC, h.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, storeErr("scan", err)
	}

	out := make([]chat.EditHistory, len(rows))
	for i, h := range rows {
		out[i] = h.APIEditHistory()
	}
	return out, nil
}

// InsertReaction inserts a message reaction into the database.
func (pg *Postgres) InsertReaction(ctx context.Context, r chat.Reaction) (chat.Reaction, error) {
	if !validIDs(r.MessageID) {
		return chat.Reaction{}, chat.ErrNoRows
	}
	row := &reaction{
		ID:        newID(),
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		CreatedAt: dbTime(r.CreatedAt),
	}
	if _, err := pg.bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return chat.Reaction{}, storeErr("insert", err)
	}
	return row.APIReaction(), nil
}

// DeleteReaction deletes the reaction identified by message, user and
// emoji.
func (pg *Postgres) DeleteReaction(ctx context.Context, r chat.Reaction) error {
	if !validIDs(r.MessageID) {
		return chat.ErrNoRows
	}
	res, err := pg.bun.NewDelete().
		Model((*reaction)(nil)).
		Where("message_id = ?", r.MessageID).
		Where("user_id = ?", r.UserID).
		Where("emoji = ?", r.Emoji).
		Exec(ctx)
	if err := affected(res, err); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func withDerived(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		ColumnExpr("s.*").
		ColumnExpr("(SELECT count(*) FROM chat_messages AS cm WHERE cm.session_id = s.id) AS message_count").
		ColumnExpr("(SELECT max(cm.created_at) FROM chat_messages AS cm WHERE cm.session_id = s.id) AS last_message_at")
}

func orderReactions(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("r.created_at ASC, r.id ASC")
}

// scope restricts a message query to the filter. The owner check is part of
// the same statement, so it cannot go stale before the write.
func scope(f chat.MessageFilter) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(q bun.QueryBuilder) bun.QueryBuilder {
		if f.ID != "" {
			q = q.Where("m.id = ?", f.ID)
		}
		if f.SessionID != "" {
			q = q.Where("m.session_id = ?", f.SessionID)
		}
		if f.OwnerID != "" {
			q = q.Where("EXISTS (SELECT 1 FROM chat_sessions AS os WHERE os.id = m.session_id AND os.user_id = ?)", f.OwnerID)
		}
		return q
	}
}

// escapeLike escapes the LIKE wildcards of s using '!' as escape character.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// dbTime rounds t to the microsecond precision of timestamptz, so that a
// returned row matches the same row read back later.
func dbTime(t time.Time) time.Time {
	return t.Round(time.Microsecond)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// validIDs reports whether every non-empty id is a UUID. Anything else can
// not exist in the database.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// storeErr maps driver errors onto the chat store errors.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return chat.ErrNoRows
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case uniqueViolation:
			return chat.ErrDuplicate
		case foreignKeyViolation:
			return chat.ErrNoRows
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
