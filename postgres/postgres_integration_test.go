//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/GetStream/careerchat/chat"
	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
)

// Run with: DATABASE_URL=postgres://... go test -tags integration ./postgres

func connect(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}
	if err := Migrate(url, slogt.New(t)); err != nil {
		t.Fatal(err)
	}
	pg, err := Connect(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pg.Close() })
	return pg
}

func insertSession(t *testing.T, pg *Postgres, userID string) chat.Session {
	t.Helper()
	now := time.Now().UTC()
	s, err := pg.InsertSession(context.Background(), chat.Session{UserID: userID, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = pg.DeleteSession(context.Background(), chat.SessionFilter{ID: s.ID})
	})
	return s
}

func TestPostgres_messagePages(t *testing.T) {
	ctx := context.Background()
	pg := connect(t)
	s := insertSession(t, pg, newID())

	// Every message shares one timestamp, so the id decides the order.
	at := time.Date(2024, 1, 1, 12, 0, 0, 123456789, time.UTC)
	var want []chat.Message
	for _, content := range []string{"one", "two", "three", "four", "five", "six", "seven"} {
		m, err := pg.InsertMessage(ctx, chat.Message{SessionID: s.ID, Role: chat.RoleUser, Content: content, CreatedAt: at})
		if err != nil {
			t.Fatal(err)
		}
		want = append(want, m)
	}

	for _, limit := range []int{1, 2, 3, 7, 20} {
		fetch := func(ctx context.Context, after string, n int) ([]chat.Message, error) {
			return pg.ListMessages(ctx, chat.MessageQuery{SessionID: s.ID, After: after, Limit: n})
		}
		var got []chat.Message
		cursor := ""
		for calls := 0; ; calls++ {
			if calls > len(want)+1 {
				t.Fatalf("limit=%d: traversal does not terminate", limit)
			}
			page, err := chat.Paginate(ctx, fetch, func(m chat.Message) string { return m.ID }, limit, cursor)
			if err != nil {
				t.Fatal(err)
			}
			got = append(got, page.Items...)
			if !page.HasMore {
				break
			}
			cursor = page.NextCursor
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("limit=%d: messages mismatch (-want +got):\n%s", limit, diff)
		}
	}

	newest, err := pg.ListMessages(ctx, chat.MessageQuery{SessionID: s.ID, Limit: 2, Newest: true, After: want[4].ID})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{want[3].ID, want[2].ID}, messageIDs(newest)); diff != "" {
		t.Errorf("Newest window mismatch (-want +got):\n%s", diff)
	}

	unknown, err := pg.ListMessages(ctx, chat.MessageQuery{SessionID: s.ID, Limit: 10, After: newID()})
	if err != nil {
		t.Fatal(err)
	}
	if len(unknown) != 0 {
		t.Errorf("Got %d messages after an unknown cursor, want 0", len(unknown))
	}

	found, err := pg.ListMessages(ctx, chat.MessageQuery{SessionID: s.ID, Limit: 10, Newest: true, Contains: "T"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{want[2].ID, want[1].ID}, messageIDs(found)); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
}

func TestPostgres_ownership(t *testing.T) {
	ctx := context.Background()
	pg := connect(t)
	alice, bob := newID(), newID()
	s := insertSession(t, pg, alice)
	m, err := pg.InsertMessage(ctx, chat.Message{SessionID: s.ID, Role: chat.RoleUser, Content: "Hello", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}

	asBob := chat.MessageFilter{ID: m.ID, SessionID: s.ID, OwnerID: bob}
	if _, err := pg.FindMessage(ctx, asBob); !errors.Is(err, chat.ErrNoRows) {
		t.Errorf("FindMessage: got %v, want chat.ErrNoRows", err)
	}
	if _, _, err := pg.EditMessage(ctx, asBob, "Hijacked", time.Now()); !errors.Is(err, chat.ErrNoRows) {
		t.Errorf("EditMessage: got %v, want chat.ErrNoRows", err)
	}
	if _, err := pg.ToggleBookmark(ctx, asBob); !errors.Is(err, chat.ErrNoRows) {
		t.Errorf("ToggleBookmark: got %v, want chat.ErrNoRows", err)
	}
	if err := pg.DeleteMessage(ctx, asBob); !errors.Is(err, chat.ErrNoRows) {
		t.Errorf("DeleteMessage: got %v, want chat.ErrNoRows", err)
	}
	if n, err := pg.MarkRead(ctx, asBob, time.Now()); err != nil || n != 0 {
		t.Errorf("MarkRead: got %d, %v, want 0 rows", n, err)
	}

	got, err := pg.FindMessage(ctx, chat.MessageFilter{ID: m.ID, SessionID: s.ID, OwnerID: alice})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("Message changed by another user (-want +got):\n%s", diff)
	}
}

func TestPostgres_editAndBookmark(t *testing.T) {
	ctx := context.Background()
	pg := connect(t)
	alice := newID()
	s := insertSession(t, pg, alice)
	m, err := pg.InsertMessage(ctx, chat.Message{SessionID: s.ID, Role: chat.RoleUser, Content: "Draft", CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	f := chat.MessageFilter{ID: m.ID, SessionID: s.ID, OwnerID: alice}

	edited, h, err := pg.EditMessage(ctx, f, "Final", time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}
	if edited.Content != "Final" || !edited.Edited || edited.EditedAt == nil {
		t.Errorf("Got edited message %+v", edited)
	}
	history, err := pg.ListEditHistory(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]chat.EditHistory{h}, history); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
	if h.PreviousContent != "Draft" || h.NewContent != "Final" {
		t.Errorf("Got history %+v", h)
	}

	for _, want := range []bool{true, false} {
		on, err := pg.ToggleBookmark(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if on != want {
			t.Errorf("Got bookmarked %v, want %v", on, want)
		}
	}

	if _, err := pg.InsertReaction(ctx, chat.Reaction{MessageID: m.ID, UserID: alice, Emoji: "👍", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	_, err = pg.InsertReaction(ctx, chat.Reaction{MessageID: m.ID, UserID: alice, Emoji: "👍", CreatedAt: time.Now().UTC()})
	if !errors.Is(err, chat.ErrDuplicate) {
		t.Errorf("Got %v for a duplicate reaction, want chat.ErrDuplicate", err)
	}
}

func messageIDs(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
