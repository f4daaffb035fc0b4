package pagination

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

// Connection is one page of a GraphQL connection paginated with
// pageInfo{hasNextPage endCursor}.
type Connection struct {
	Items       []json.RawMessage
	HasNextPage bool
	EndCursor   string
}

// ConnectionFetcher fetches the connection page that starts after cursor.
type ConnectionFetcher func(ctx context.Context, cursor string) (Connection, error)

// FetchConnection collects every item of a connection, in page order.
func FetchConnection(ctx context.Context, fetch ConnectionFetcher) ([]json.RawMessage, error) {
	var (
		items  []json.RawMessage
		cursor string
	)
	for page := 1; ; page++ {
		conn, err := fetch(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch connection page %d: %w", page, err)
		}
		items = append(items, conn.Items...)
		if !conn.HasNextPage || conn.EndCursor == "" {
			break
		}
		if conn.EndCursor == cursor {
			return nil, fmt.Errorf("%w: connection cursor %q repeated on page %d", j1ql.ErrMalformedResponse, cursor, page)
		}
		cursor = conn.EndCursor
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}
