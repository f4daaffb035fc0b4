package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

var (
	// ErrPartialResults marks a result that is an ordered prefix of the full
	// result set because a page fetch failed.
	ErrPartialResults = errors.New("partial results")

	// ErrPollTimeout is returned when a deferred result stays IN_PROGRESS
	// longer than Config.PollTimeout.
	ErrPollTimeout = errors.New("deferred result poll timeout")
)

const (
	modeCursor    = "cursor"
	modeSkipLimit = "skip_limit"
	modeDeferred  = "deferred"
)

// PageRequest describes one page of a query.
type PageRequest struct {
	Query          string
	Variables      map[string]any
	IncludeDeleted bool
	// Cursor is empty for the first page.
	Cursor string
}

func (r PageRequest) withCursor(cursor string) PageRequest {
	r.Cursor = cursor
	return r
}

// PageFetcher is the interface the client implements for single-page fetching.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (j1ql.Page, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, req PageRequest) (j1ql.Page, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, req PageRequest) (j1ql.Page, error) {
	return f(ctx, req)
}

// DeferredSource submits deferred queries and polls their result URLs.
type DeferredSource interface {
	// Submit requests a deferred result and returns the URL to poll.
	Submit(ctx context.Context, req PageRequest) (string, error)
	// Poll fetches the current state of a deferred result.
	Poll(ctx context.Context, url string) (j1ql.StatusPage, error)
}

// fetchPage runs one fetch under the configured page timeout and counts it.
func fetchPage(ctx context.Context, fetcher PageFetcher, timeout time.Duration, mode string, req PageRequest) (j1ql.Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	page, err := fetcher.FetchPage(ctx, req)
	if err != nil {
		return j1ql.Page{}, err
	}
	PagesFetched.WithLabelValues(mode).Inc()
	return page, nil
}

// requireList rejects pages that cannot be appended to a record list.
func requireList(page j1ql.Page) error {
	switch page.Kind {
	case j1ql.KindInline, j1ql.KindCursor:
		return nil
	default:
		return fmt.Errorf("%w: unexpected %s page during pagination", j1ql.ErrMalformedResponse, page.Kind)
	}
}

// requireAdvance fails when a page fetched with cursor hands the same cursor
// back, which would otherwise loop forever.
func requireAdvance(cursor string, page j1ql.Page) error {
	if cursor != "" && page.HasMore() && page.Cursor == cursor {
		return fmt.Errorf("%w: cursor %q repeated", j1ql.ErrMalformedResponse, cursor)
	}
	return nil
}
