package client

import (
	"context"
	"encoding/json"
	"errors"
	"go/ast"
	"go/parser"
	"go/token"
	"net/http"
	"testing"
	"time"

	"github.com/jupiterone/jupiterone-client-go/internal/testutil"
	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type host struct {
	ID int `json:"id"`
}

func hosts(n int) []any {
	out := make([]any, n)
	for i := range n {
		out[i] = host{ID: i}
	}
	return out
}

func hostIDs(t *testing.T, result *j1ql.Result) []int {
	t.Helper()
	decoded, err := j1ql.DecodeRecords[host](result.Records)
	require.NoError(t, err)
	ids := make([]int, len(decoded))
	for i, h := range decoded {
		ids[i] = h.ID
	}
	return ids
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = i
	}
	return out
}

func TestQuery_CursorCompleteness(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(5)...)

	client := newTestClient(t, mock)
	result, err := client.Query(context.Background(), "FIND Host")
	require.NoError(t, err)

	assert.Equal(t, sequence(5), hostIDs(t, result))
	assert.False(t, result.IsTree())

	requests := mock.GraphQLRequests()
	require.Len(t, requests, 3)
	for _, req := range requests {
		assert.Equal(t, "cursor", req.Operation())
		assert.Equal(t, "FIND Host", req.StringVar("query"))
		assert.Equal(t, false, req.Variables["includeDeleted"])
	}
	assert.NotContains(t, requests[0].Variables, "cursor")
	assert.Equal(t, "c2", requests[1].StringVar("cursor"))
	assert.Equal(t, "c4", requests[2].StringVar("cursor"))
}

func TestQuery_InlineLimit(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(10)...)

	client := newTestClient(t, mock)
	result, err := client.Query(context.Background(), "FIND Host LIMIT 3")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, hostIDs(t, result))
	assert.Len(t, mock.GraphQLRequests(), 2, "pagination should stop once the limit is met")
}

func TestQuery_ParallelMatchesSequential(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(3, hosts(20)...)

	client := newTestClient(t, mock)
	sequential, err := client.Query(context.Background(), "FIND Host")
	require.NoError(t, err)
	parallel, err := client.Query(context.Background(), "FIND Host", WithMaxWorkers(4))
	require.NoError(t, err)

	assert.Equal(t, hostIDs(t, sequential), hostIDs(t, parallel))
	assert.Equal(t, sequence(20), hostIDs(t, parallel))
}

func TestQuery_Options(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(4)...)

	client := newTestClient(t, mock)
	result, err := client.Query(context.Background(), "FIND Host WITH _id=$id",
		WithIncludeDeleted(),
		WithCursor("c2"),
		WithVariables(map[string]any{"id": "h1"}),
	)
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, hostIDs(t, result))
	requests := mock.GraphQLRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, true, requests[0].Variables["includeDeleted"])
	assert.Equal(t, "c2", requests[0].StringVar("cursor"))
	assert.Equal(t, map[string]any{"id": "h1"}, requests[0].Variables["variables"])
}

func TestQuery_InvalidWorkers(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()

	client := newTestClient(t, mock)
	_, err := client.Query(context.Background(), "FIND Host", WithMaxWorkers(0))
	require.Error(t, err)
	assert.Zero(t, mock.GetRequestCount())
}

func TestQuery_Tree(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetGraphQLHandler(func(w http.ResponseWriter, req testutil.GraphQLRequest) {
		testutil.WriteGraphQL(w, map[string]any{
			"queryV1": map[string]any{
				"type":   "tree",
				"data":   map[string]any{"vertices": []any{map[string]any{"id": "v1"}, map[string]any{"id": "v2"}}, "edges": []any{}},
				"cursor": "ignored",
			},
		})
	})

	client := newTestClient(t, mock)
	result, err := client.Query(context.Background(), "FIND Host THAT HAS DataStore RETURN TREE")
	require.NoError(t, err)

	assert.True(t, result.IsTree())
	assert.Equal(t, 2, result.Len())
	assert.Len(t, mock.GraphQLRequests(), 1)
}

func TestQuery_SkipLimit(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(300)...)

	client := newTestClient(t, mock)
	result, err := client.Query(context.Background(), "FIND Host", WithSkipLimit(0, 0))
	require.NoError(t, err)

	assert.Equal(t, sequence(300), hostIDs(t, result))
	requests := mock.GraphQLRequests()
	require.Len(t, requests, 2)
	assert.Equal(t, "legacy", requests[0].Operation())
	assert.Equal(t, "FIND Host SKIP 0 LIMIT 250", requests[0].StringVar("query"))
	assert.Equal(t, "FIND Host SKIP 250 LIMIT 250", requests[1].StringVar("query"))
}

func TestQuery_LegacyOptionsDeprecated(t *testing.T) {
	file, err := parser.ParseFile(token.NewFileSet(), "query.go", nil, parser.ParseComments)
	require.NoError(t, err)
	docs := make(map[string]string)
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Doc != nil {
			docs[fn.Name.Name] = fn.Doc.Text()
		}
	}

	tests := []struct {
		name string
		opt  QueryOption
	}{
		{"WithSkip", WithSkip(0)},
		{"WithLimit", WithLimit(0)},
		{"WithSkipLimit", WithSkipLimit(0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, docs[tt.name], "\nDeprecated: ", "every option selecting skip/limit carries a Deprecated paragraph")

			mock := testutil.NewMockJ1()
			defer mock.Close()
			mock.SetRecords(2, hosts(10)...)

			client := newTestClient(t, mock)
			result, err := client.Query(context.Background(), "FIND Host", tt.opt)
			require.NoError(t, err)
			assert.Equal(t, sequence(10), hostIDs(t, result))

			requests := mock.GraphQLRequests()
			require.Len(t, requests, 1)
			assert.Equal(t, "legacy", requests[0].Operation())
		})
	}
}

func TestQuery_PartialResults(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetGraphQLHandler(func(w http.ResponseWriter, req testutil.GraphQLRequest) {
		pages := map[string]map[string]any{
			"":   {"type": "list", "data": []any{host{ID: 0}, host{ID: 1}}, "cursor": "p1"},
			"p1": {"type": "list", "data": []any{host{ID: 2}, host{ID: 3}}, "cursor": "p2"},
		}
		page, ok := pages[req.StringVar("cursor")]
		if !ok {
			http.Error(w, "cursor expired", http.StatusBadRequest)
			return
		}
		testutil.WriteGraphQL(w, map[string]any{"queryV1": page})
	})

	client := newTestClient(t, mock)

	result, err := client.Query(context.Background(), "FIND Host", WithMaxWorkers(2))
	require.Error(t, err)
	assert.Nil(t, result, "strict mode must not return a partial result")
	assert.False(t, errors.Is(err, pagination.ErrPartialResults))

	result, err = client.Query(context.Background(), "FIND Host", WithMaxWorkers(2), WithPartialResults())
	require.ErrorIs(t, err, pagination.ErrPartialResults)
	require.NotNil(t, result)
	assert.Equal(t, []int{0, 1, 2, 3}, hostIDs(t, result))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestQueryDeferred(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(5)...)
	mock.InProgressPolls = 1

	client := newTestClient(t, mock)
	result, err := client.QueryDeferred(context.Background(), "FIND Host")
	require.NoError(t, err)

	assert.Equal(t, sequence(5), hostIDs(t, result))

	requests := mock.GraphQLRequests()
	require.Len(t, requests, 3)
	for _, req := range requests {
		assert.Equal(t, "deferred", req.Operation())
		assert.Equal(t, j1ql.DeferredForce, req.StringVar("deferredResponse"))
	}
	assert.Equal(t, "c2", requests[1].StringVar("cursor"))

	polls, anonymous := mock.GetDeferredPolls()
	assert.Equal(t, 6, polls, "each result URL is polled once IN_PROGRESS and once COMPLETED")
	assert.Equal(t, polls, anonymous, "result URLs must be fetched without credentials")
}

func TestQueryDeferred_InlineLimit(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(10)...)

	client := newTestClient(t, mock)
	result, err := client.QueryDeferred(context.Background(), "FIND Host LIMIT 3")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, hostIDs(t, result))
	assert.Len(t, mock.GraphQLRequests(), 2)
}

func TestQueryDeferred_RejectsSkipLimit(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()

	client := newTestClient(t, mock)
	_, err := client.QueryDeferred(context.Background(), "FIND Host", WithSkip(10))
	require.Error(t, err)
	assert.Zero(t, mock.GetRequestCount())
}

func TestQueryDeferred_MissingURL(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetGraphQLHandler(func(w http.ResponseWriter, req testutil.GraphQLRequest) {
		testutil.WriteGraphQL(w, map[string]any{
			"queryV1": map[string]any{"type": "list", "data": []any{}, "cursor": nil},
		})
	})

	client := newTestClient(t, mock)
	_, err := client.QueryDeferred(context.Background(), "FIND Host")
	require.ErrorIs(t, err, j1ql.ErrMalformedResponse)
}

func TestQueryDeferred_PollTimeout(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(2)...)
	mock.InProgressPolls = 1 << 20

	client := newTestClient(t, mock, func(c *Config) {
		c.PollInterval = 5 * time.Millisecond
		c.PollTimeout = 50 * time.Millisecond
	})
	_, err := client.QueryDeferred(context.Background(), "FIND Host")
	require.ErrorIs(t, err, pagination.ErrPollTimeout)
}

func TestQuery_ResultCache(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(3)...)

	_, rdb := setupRedis(t)
	client := newTestClient(t, mock, func(c *Config) {
		c.Redis = rdb
		c.ResultCacheTTL = time.Minute
	})
	ctx := context.Background()

	first, err := client.Query(ctx, "FIND Host")
	require.NoError(t, err)
	require.Len(t, mock.GraphQLRequests(), 2)

	cached, err := client.Query(ctx, "FIND Host")
	require.NoError(t, err)
	assert.Len(t, mock.GraphQLRequests(), 2, "second query should be served from cache")
	assert.Equal(t, hostIDs(t, first), hostIDs(t, cached))

	// a different mode is a different cache entry
	_, err = client.Query(ctx, "FIND Host", WithIncludeDeleted())
	require.NoError(t, err)
	assert.Len(t, mock.GraphQLRequests(), 4)

	_, err = client.Query(ctx, "FIND Host", WithoutCache())
	require.NoError(t, err)
	assert.Len(t, mock.GraphQLRequests(), 6)

	require.NoError(t, client.InvalidateQuery(ctx, "FIND Host"))
	_, err = client.Query(ctx, "FIND Host")
	require.NoError(t, err)
	assert.Len(t, mock.GraphQLRequests(), 8, "invalidated query should hit the API again")

	removed, err := client.PurgeQueryCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestQuery_ResultCacheSkipsFailures(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()
	mock.SetRecords(2, hosts(3)...)
	mock.FailNext(1, testutil.MockResponse{StatusCode: http.StatusUnauthorized})

	_, rdb := setupRedis(t)
	client := newTestClient(t, mock, func(c *Config) {
		c.Redis = rdb
		c.ResultCacheTTL = time.Minute
	})
	ctx := context.Background()

	_, err := client.Query(ctx, "FIND Host")
	require.ErrorIs(t, err, ErrUnauthorized)

	result, err := client.Query(ctx, "FIND Host")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Len())

	keys, err := rdb.Keys(ctx, "j1:acme:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestQuery_CacheDisabledHelpers(t *testing.T) {
	mock := testutil.NewMockJ1()
	defer mock.Close()

	client := newTestClient(t, mock)
	assert.NoError(t, client.InvalidateQuery(context.Background(), "FIND Host"))
	removed, err := client.PurgeQueryCache(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDecodeField(t *testing.T) {
	body := []byte(`{"data":{"thing":{"name":"x"},"empty":null}}`)

	got, err := decodeField[map[string]string](body, "thing")
	require.NoError(t, err)
	assert.Equal(t, "x", got["name"])

	_, err = decodeField[json.RawMessage](body, "empty")
	assert.ErrorIs(t, err, j1ql.ErrMalformedResponse)

	_, err = decodeField[json.RawMessage](body, "missing")
	assert.ErrorIs(t, err, j1ql.ErrMalformedResponse)

	_, err = decodeField[json.RawMessage]([]byte(`{"data":null}`), "thing")
	assert.ErrorIs(t, err, j1ql.ErrMalformedResponse)
}
