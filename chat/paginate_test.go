package chat

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// intsAfter serves the integers [0, n) as strings, keyed by themselves.
func intsAfter(n int) Fetch[string] {
	return func(_ context.Context, after string, limit int) ([]string, error) {
		start := 0
		if after != "" {
			i, err := strconv.Atoi(after)
			if err != nil {
				return nil, err
			}
			start = i + 1
		}
		var out []string
		for i := start; i < n && len(out) < limit; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return out, nil
	}
}

func identity(s string) string { return s }

func TestPaginate(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		limit  int
		cursor string
		want   Page[string]
	}{
		{
			name:  "Empty",
			total: 0,
			limit: 10,
			want:  Page[string]{Items: []string{}},
		},
		{
			name:  "ExactlyOnePage",
			total: 3,
			limit: 3,
			want:  Page[string]{Items: []string{"0", "1", "2"}},
		},
		{
			name:  "HasMore",
			total: 5,
			limit: 2,
			want:  Page[string]{Items: []string{"0", "1"}, NextCursor: "1", HasMore: true},
		},
		{
			name:   "FromCursor",
			total:  5,
			limit:  2,
			cursor: "1",
			want:   Page[string]{Items: []string{"2", "3"}, NextCursor: "3", HasMore: true},
		},
		{
			name:   "LastPage",
			total:  5,
			limit:  2,
			cursor: "3",
			want:   Page[string]{Items: []string{"4"}},
		},
		{
			name:  "ClampedToMax",
			total: 150,
			limit: 1000,
			want: Page[string]{
				Items:      seq(0, MaxPageSize),
				NextCursor: strconv.Itoa(MaxPageSize - 1),
				HasMore:    true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Paginate(context.Background(), intsAfter(tt.total), identity, tt.limit, tt.cursor)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Page mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPaginateTraversal(t *testing.T) {
	for _, total := range []int{0, 1, 7, 20, 21} {
		for _, limit := range []int{1, 2, 3, 20} {
			var got []string
			cursor := ""
			for calls := 0; ; calls++ {
				if calls > total+1 {
					t.Fatalf("total=%d limit=%d: traversal does not terminate", total, limit)
				}
				page, err := Paginate(context.Background(), intsAfter(total), identity, limit, cursor)
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, page.Items...)
				if !page.HasMore {
					if page.NextCursor != "" {
						t.Errorf("total=%d limit=%d: got cursor %q on last page", total, limit, page.NextCursor)
					}
					break
				}
				cursor = page.NextCursor
			}
			if diff := cmp.Diff(seq(0, total), got, cmpEmpty); diff != "" {
				t.Errorf("total=%d limit=%d: items mismatch (-want +got):\n%s", total, limit, diff)
			}
		}
	}
}

func TestPaginateFetchError(t *testing.T) {
	boom := errors.New("boom")
	fetch := func(context.Context, string, int) ([]string, error) { return nil, boom }
	if _, err := Paginate(context.Background(), fetch, identity, 10, ""); !errors.Is(err, boom) {
		t.Errorf("Got error %v, want %v", err, boom)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		limit, def, want int
	}{
		{0, 50, 50},
		{-3, 20, 20},
		{7, 50, 7},
		{101, 50, MaxPageSize},
		{0, 500, MaxPageSize},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.limit, tt.def); got != tt.want {
			t.Errorf("ClampLimit(%d, %d) = %d, want %d", tt.limit, tt.def, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	reactions := []Reaction{
		{MessageID: "m", UserID: "alice", Emoji: "👍"},
		{MessageID: "m", UserID: "bob", Emoji: "👍"},
		{MessageID: "m", UserID: "bob", Emoji: "🎉"},
		{MessageID: "m", UserID: "carol", Emoji: "❤️"},
		{MessageID: "m", UserID: "alice", Emoji: "❤️"},
		{MessageID: "m", UserID: "alice", Emoji: "👍"},
	}

	got := Summarize(reactions, "bob")
	want := []ReactionSummary{
		{Emoji: "❤️", Count: 2, ReactedByMe: false},
		{Emoji: "👍", Count: 2, ReactedByMe: true},
		{Emoji: "🎉", Count: 1, ReactedByMe: true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summary mismatch (-want +got):\n%s", diff)
	}

	if got := Summarize(nil, "bob"); len(got) != 0 {
		t.Errorf("Got %v for no reactions", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "hé" {
		t.Errorf("Got %q, want %q", got, "hé")
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Errorf("Got %q, want %q", got, "hi")
	}
}

func seq(from, to int) []string {
	out := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}

// cmpEmpty treats nil and empty slices as equal.
var cmpEmpty = cmp.Comparer(func(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
})
