package redis

import (
	"encoding/json"
	"fmt"

	"github.com/GetStream/careerchat/chat"
)

// A page represents a cached first page of a session's messages. Items
// holds the JSON encoded messages.
type page struct {
	Items      string `redis:"items"`
	NextCursor string `redis:"next_cursor"`
	HasMore    bool   `redis:"has_more"`
}

// cachedMessage carries the fields of chat.Message that are hidden from
// its JSON form.
type cachedMessage struct {
	chat.Message
	Reactions []chat.Reaction `json:"raw_reactions"`
}

func newPage(p chat.Page[chat.Message]) (*page, error) {
	items := make([]cachedMessage, len(p.Items))
	for i, m := range p.Items {
		items[i] = cachedMessage{Message: m, Reactions: m.Reactions}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	return &page{
		Items:      string(b),
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	}, nil
}

func (p page) APIPage() (chat.Page[chat.Message], error) {
	var items []cachedMessage
	if err := json.Unmarshal([]byte(p.Items), &items); err != nil {
		return chat.Page[chat.Message]{}, fmt.Errorf("decode messages: %w", err)
	}
	out := chat.Page[chat.Message]{
		Items:      make([]chat.Message, len(items)),
		NextCursor: p.NextCursor,
		HasMore:    p.HasMore,
	}
	for i, m := range items {
		out.Items[i] = m.Message
		out.Items[i].Reactions = m.Reactions
	}
	return out, nil
}
