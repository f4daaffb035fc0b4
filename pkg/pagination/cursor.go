package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
)

// CursorPager follows server-issued cursors until the result set is exhausted.
type CursorPager struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewCursorPager creates a new cursor pager.
func NewCursorPager(fetcher PageFetcher, config Config) *CursorPager {
	return &CursorPager{
		fetcher: fetcher,
		config:  config.withDefaults(),
		logger:  logging.NewLogger("pagination"),
	}
}

// FetchAll fetches every page of req.Query starting at req.Cursor.
//
// A tree-shaped first page is returned as is. In parallel mode a failing page
// fails the whole call unless AllowPartialResults is set, in which case the
// ordered prefix is returned together with an error wrapping ErrPartialResults.
func (p *CursorPager) FetchAll(ctx context.Context, req PageRequest) (*j1ql.Result, error) {
	s := newSession(p.logger, modeCursor, req.Query)

	first, err := fetchPage(ctx, p.fetcher, p.config.PageTimeout, modeCursor, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}
	if first.Kind == j1ql.KindTree {
		return s.tree(first), nil
	}
	if err := requireList(first); err != nil {
		return nil, err
	}
	if err := requireAdvance(req.Cursor, first); err != nil {
		return nil, err
	}

	s.add(first.Records)
	if !first.HasMore() || s.limitReached() {
		return s.result(), nil
	}

	if p.config.MaxWorkers > 1 {
		if err := p.fetchParallel(ctx, s, req, first.Cursor); err != nil {
			if !p.config.AllowPartialResults {
				return nil, err
			}
			PartialResults.Inc()
			s.logger.Warn().
				Err(err).
				Int("records", len(s.records)).
				Msg("Returning partial results")
			return s.result(), fmt.Errorf("%w: %w", ErrPartialResults, err)
		}
		return s.result(), nil
	}

	cursor := first.Cursor
	for {
		page, err := fetchPage(ctx, p.fetcher, p.config.PageTimeout, modeCursor, req.withCursor(cursor))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", s.pages+1, err)
		}
		if err := requireList(page); err != nil {
			return nil, err
		}
		if err := requireAdvance(cursor, page); err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", s.pages+1, err)
		}
		s.add(page.Records)
		if s.limitReached() || !page.HasMore() {
			break
		}
		cursor = page.Cursor
	}
	return s.result(), nil
}

// pageResult is one completed (or abandoned) fetch, keyed by its position in
// the cursor sequence.
type pageResult struct {
	seq     int
	cursor  string
	page    j1ql.Page
	err     error
	skipped bool
}

// fetchParallel fetches the pages after the first one on a pool of at most
// MaxWorkers fetches. Completed pages are buffered by sequence number and
// appended to the session strictly in cursor order.
//
// MaxWorkers is a bound only. A cursor is known once the page before it has
// returned, so a single cursor chain keeps at most one fetch in flight.
//
// Scheduling stops once a page without a cursor is flushed, the inline limit
// is met, or a fetch fails. Fetches still waiting for a slot are abandoned;
// fetches already running finish and their pages are discarded.
func (p *CursorPager) fetchParallel(ctx context.Context, s *session, req PageRequest, cursor string) error {
	sem := semaphore.NewWeighted(int64(p.config.MaxWorkers))
	scheduleCtx, stopScheduling := context.WithCancel(ctx)
	defer stopScheduling()

	results := make(chan pageResult, p.config.MaxWorkers)
	inFlight := 0

	schedule := func(seq int, cursor string) {
		inFlight++
		go func() {
			if err := sem.Acquire(scheduleCtx, 1); err != nil {
				results <- pageResult{seq: seq, cursor: cursor, skipped: true}
				return
			}
			defer sem.Release(1)

			page, err := fetchPage(ctx, p.fetcher, p.config.PageTimeout, modeCursor, req.withCursor(cursor))
			if err == nil {
				err = requireList(page)
			}
			if err == nil {
				err = requireAdvance(cursor, page)
			}
			results <- pageResult{seq: seq, cursor: cursor, page: page, err: err}
		}()
	}

	pending := make(map[int]pageResult)
	next := 1
	stopped := false
	var firstErr error

	stop := func() {
		stopped = true
		stopScheduling()
	}

	schedule(next, cursor)
	for inFlight > 0 {
		r := <-results
		inFlight--

		if r.skipped || stopped {
			if !r.skipped {
				s.logger.Debug().Int("cursor_seq", r.seq).Msg("Discarding page fetched after stop")
			}
			continue
		}

		if r.err != nil {
			s.logger.Warn().
				Err(r.err).
				Int("cursor_seq", r.seq).
				Msg("Page fetch failed")
			firstErr = fmt.Errorf("failed to fetch page %d: %w", r.seq+1, r.err)
			stop()
			continue
		}

		pending[r.seq] = r
		for !stopped {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			s.add(ready.page.Records)
			if s.limitReached() || !ready.page.HasMore() {
				stop()
			}
		}

		if !stopped && r.page.HasMore() {
			schedule(r.seq+1, r.page.Cursor)
		}
	}

	if len(pending) > 0 {
		s.logger.Debug().Int("discarded", len(pending)).Msg("Discarded out-of-order pages after stop")
	}
	return firstErr
}
