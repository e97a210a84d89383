package chat

import "context"

// A Fetch returns up to n items ordered after the item identified by after,
// or from the start when after is empty.
type Fetch[T any] func(ctx context.Context, after string, n int) ([]T, error)

// Paginate returns one page of at most limit items following cursor. It
// asks fetch for one extra item to learn whether another page exists. The
// limit is clamped to MaxPageSize.
func Paginate[T any](ctx context.Context, fetch Fetch[T], key func(T) string, limit int, cursor string) (Page[T], error) {
	limit = ClampLimit(limit, limit)
	items, err := fetch(ctx, cursor, limit+1)
	if err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		page.NextCursor = key(page.Items[limit-1])
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

// ClampLimit returns def for non-positive limits and caps the result at
// MaxPageSize.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit <= 0 {
		limit = 1
	}
	return min(limit, MaxPageSize)
}
