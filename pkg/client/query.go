package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jupiterone/jupiterone-client-go/pkg/cache"
	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	modeCursor    = "cursor"
	modeSkipLimit = "skip_limit"
	modeDeferred  = "deferred"
)

// QueryOption configures a single Query or QueryDeferred call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	cursor         string
	skip           int
	limit          int
	skipLimit      bool
	includeDeleted bool
	maxWorkers     int
	variables      map[string]any
	allowPartial   bool
	noCache        bool
}

// WithCursor resumes cursor pagination from a previously returned cursor.
func WithCursor(cursor string) QueryOption {
	return func(o *queryOptions) { o.cursor = cursor }
}

// WithSkip selects the legacy skip/limit mode with the given page offset step.
//
// Deprecated: it switches the query to skip/limit pagination; use cursor
// pagination, the default mode, instead.
func WithSkip(skip int) QueryOption {
	return func(o *queryOptions) {
		o.skipLimit = true
		o.skip = skip
	}
}

// WithLimit selects the legacy skip/limit mode with the given page size.
//
// Deprecated: it switches the query to skip/limit pagination; use cursor
// pagination, the default mode, instead.
func WithLimit(limit int) QueryOption {
	return func(o *queryOptions) {
		o.skipLimit = true
		o.limit = limit
	}
}

// WithSkipLimit selects the legacy skip/limit mode.
//
// Deprecated: skip/limit pagination is kept for compatibility; cursor
// pagination is the default and preferred mode.
func WithSkipLimit(skip, limit int) QueryOption {
	return func(o *queryOptions) {
		o.skipLimit = true
		o.skip = skip
		o.limit = limit
	}
}

// WithIncludeDeleted includes recently deleted entities in the result.
func WithIncludeDeleted() QueryOption {
	return func(o *queryOptions) { o.includeDeleted = true }
}

// WithMaxWorkers overrides Config.MaxWorkers for one call.
func WithMaxWorkers(n int) QueryOption {
	return func(o *queryOptions) { o.maxWorkers = n }
}

// WithVariables passes J1QL query variables.
func WithVariables(variables map[string]any) QueryOption {
	return func(o *queryOptions) { o.variables = variables }
}

// WithPartialResults returns the ordered prefix of a parallel cursor query
// together with an error wrapping pagination.ErrPartialResults when a page
// fails, instead of failing the call.
func WithPartialResults() QueryOption {
	return func(o *queryOptions) { o.allowPartial = true }
}

// WithoutCache bypasses the result cache for one call.
func WithoutCache() QueryOption {
	return func(o *queryOptions) { o.noCache = true }
}

func (c *Client) queryOptions(opts []QueryOption) queryOptions {
	o := queryOptions{
		maxWorkers:   c.config.MaxWorkers,
		allowPartial: c.config.AllowPartialResults,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (c *Client) paginationConfig(o queryOptions) pagination.Config {
	return pagination.Config{
		MaxWorkers:          o.maxWorkers,
		AllowPartialResults: o.allowPartial,
		PollInterval:        c.config.PollInterval,
		PollTimeout:         c.config.PollTimeout,
	}
}

// Query executes a J1QL query and returns every record of the result, in
// server order. Cursor pagination is used unless a skip/limit option selects
// the legacy mode. A LIMIT written into the query caps the result.
//
// Tree-shaped results are returned as-is from the first response.
func (c *Client) Query(ctx context.Context, query string, opts ...QueryOption) (*j1ql.Result, error) {
	o := c.queryOptions(opts)
	mode := modeCursor
	if o.skipLimit {
		mode = modeSkipLimit
	}
	if o.maxWorkers < 1 {
		return nil, fmt.Errorf("max workers must be >= 1 (got %d)", o.maxWorkers)
	}

	ctx, span := c.tracer.Start(ctx, "jupiterone.Query", trace.WithAttributes(
		attribute.String("j1.mode", mode),
		attribute.Int("j1.max_workers", o.maxWorkers),
	))
	defer span.End()

	return c.runQuery(ctx, span, mode, query, o, func(req pagination.PageRequest) (*j1ql.Result, error) {
		if o.skipLimit {
			c.logger.Warn().
				Str("operation", "query").
				Msg("Limit and skip pagination is no longer a recommended method for pagination; use cursor pagination instead")
			pager := pagination.NewSkipLimitPager(pagination.PageFetcherFunc(c.fetchLegacyPage), c.paginationConfig(o))
			return pager.FetchAll(ctx, req, o.skip, o.limit)
		}
		pager := pagination.NewCursorPager(pagination.PageFetcherFunc(c.fetchCursorPage), c.paginationConfig(o))
		return pager.FetchAll(ctx, req)
	})
}

// QueryDeferred executes a J1QL query through deferred responses: each page
// is computed by the server asynchronously and downloaded from a result URL.
// Skip/limit options are not supported in this mode.
func (c *Client) QueryDeferred(ctx context.Context, query string, opts ...QueryOption) (*j1ql.Result, error) {
	o := c.queryOptions(opts)
	if o.skipLimit {
		return nil, fmt.Errorf("skip/limit pagination is not supported for deferred queries")
	}

	ctx, span := c.tracer.Start(ctx, "jupiterone.QueryDeferred", trace.WithAttributes(
		attribute.String("j1.mode", modeDeferred),
	))
	defer span.End()

	return c.runQuery(ctx, span, modeDeferred, query, o, func(req pagination.PageRequest) (*j1ql.Result, error) {
		pager := pagination.NewDeferredPager(deferredSource{client: c}, c.paginationConfig(o))
		return pager.FetchAll(ctx, req)
	})
}

// runQuery wraps an engine run with the result cache and span bookkeeping.
// Only complete results are cached.
func (c *Client) runQuery(ctx context.Context, span trace.Span, mode, query string, o queryOptions, run func(pagination.PageRequest) (*j1ql.Result, error)) (*j1ql.Result, error) {
	key := c.cacheKey(mode, query, o)
	useCache := c.cache != nil && !o.noCache

	if useCache {
		if result, ok := c.cachedResult(ctx, key); ok {
			span.SetAttributes(
				attribute.Bool("j1.cache_hit", true),
				attribute.Int("j1.records", result.Len()),
			)
			return result, nil
		}
	}

	result, err := run(pagination.PageRequest{
		Query:          query,
		Variables:      o.variables,
		IncludeDeleted: o.includeDeleted,
		Cursor:         o.cursor,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if result != nil {
			span.SetAttributes(attribute.Int("j1.records", result.Len()))
		}
		return result, err
	}

	span.SetAttributes(
		attribute.Bool("j1.cache_hit", false),
		attribute.Bool("j1.tree", result.IsTree()),
		attribute.Int("j1.records", result.Len()),
	)

	if useCache {
		if err := c.cache.Set(ctx, key, cache.NewEntry(result, c.config.ResultCacheTTL)); err != nil {
			cacheLookupsTotal.WithLabelValues("error").Inc()
			c.logger.Warn().Err(err).Str("mode", mode).Msg("Failed to cache query result")
		}
	}
	return result, nil
}

func (c *Client) cacheKey(mode, query string, o queryOptions) cache.CacheKey {
	params := map[string]string{}
	if o.cursor != "" {
		params["cursor"] = o.cursor
	}
	if mode == modeSkipLimit {
		params["skip"] = strconv.Itoa(o.skip)
		params["limit"] = strconv.Itoa(o.limit)
	}
	return cache.CacheKey{
		Account:        c.config.Account,
		Mode:           mode,
		Query:          query,
		IncludeDeleted: o.includeDeleted,
		Params:         params,
		Variables:      o.variables,
	}
}

func (c *Client) cachedResult(ctx context.Context, key cache.CacheKey) (*j1ql.Result, bool) {
	entry, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		c.logger.Debug().Str("mode", key.Mode).Msg("Query result served from cache")
		return entry.Result, true
	case errors.Is(err, cache.ErrCacheMiss):
		cacheLookupsTotal.WithLabelValues("miss").Inc()
	default:
		cacheLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Warn().Err(err).Str("mode", key.Mode).Msg("Cache get error, querying API")
	}
	return nil, false
}

// InvalidateQuery removes the cached results of query for every mode the
// given options can select. It is a no-op when the cache is disabled.
func (c *Client) InvalidateQuery(ctx context.Context, query string, opts ...QueryOption) error {
	if c.cache == nil {
		return nil
	}
	o := c.queryOptions(opts)
	modes := []string{modeCursor, modeDeferred}
	if o.skipLimit {
		modes = []string{modeSkipLimit}
	}
	for _, mode := range modes {
		if err := c.cache.Delete(ctx, c.cacheKey(mode, query, o)); err != nil {
			return fmt.Errorf("invalidate %s query: %w", mode, err)
		}
	}
	return nil
}

// PurgeQueryCache removes every cached result of the client's account and
// returns the number of entries removed.
func (c *Client) PurgeQueryCache(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	return c.cache.DeleteAccount(ctx, c.config.Account)
}
