package pagination

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

func TestFetchConnection(t *testing.T) {
	pages := map[string]Connection{
		"":  {Items: records(0, 2), HasNextPage: true, EndCursor: "a"},
		"a": {Items: records(2, 2), HasNextPage: true, EndCursor: "b"},
		"b": {Items: records(4, 1), HasNextPage: false, EndCursor: "b"},
	}
	var cursors []string

	items, err := FetchConnection(context.Background(), func(_ context.Context, cursor string) (Connection, error) {
		cursors = append(cursors, cursor)
		return pages[cursor], nil
	})
	require.NoError(t, err)

	assert.Len(t, items, 5)
	assert.Equal(t, []string{"", "a", "b"}, cursors)
}

func TestFetchConnection_EmptyEndCursorStops(t *testing.T) {
	calls := 0
	items, err := FetchConnection(context.Background(), func(context.Context, string) (Connection, error) {
		calls++
		return Connection{HasNextPage: true}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestFetchConnection_RepeatedCursor(t *testing.T) {
	_, err := FetchConnection(context.Background(), func(context.Context, string) (Connection, error) {
		return Connection{Items: records(0, 1), HasNextPage: true, EndCursor: "same"}, nil
	})
	assert.ErrorIs(t, err, j1ql.ErrMalformedResponse)
}

func TestFetchConnection_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := FetchConnection(context.Background(), func(context.Context, string) (Connection, error) {
		return Connection{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
