package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
)

// DeferredPager retrieves results the server computes asynchronously.
type DeferredPager struct {
	source DeferredSource
	config Config
	logger zerolog.Logger
}

// NewDeferredPager creates a new deferred pager.
func NewDeferredPager(source DeferredSource, config Config) *DeferredPager {
	return &DeferredPager{
		source: source,
		config: config.withDefaults(),
		logger: logging.NewLogger("pagination"),
	}
}

// FetchAll submits req, polls the returned URL until the result is final and
// repeats with the status page cursor until there is none left or the inline
// limit is met.
func (p *DeferredPager) FetchAll(ctx context.Context, req PageRequest) (*j1ql.Result, error) {
	s := newSession(p.logger, modeDeferred, req.Query)

	for {
		url, err := p.source.Submit(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to submit deferred query: %w", err)
		}

		status, err := p.poll(ctx, s, url)
		if err != nil {
			return nil, err
		}
		PagesFetched.WithLabelValues(modeDeferred).Inc()

		s.add(status.Data)
		if s.limitReached() || !status.HasMore() {
			break
		}
		if req.Cursor != "" && status.Cursor == req.Cursor {
			return nil, fmt.Errorf("%w: deferred cursor %q repeated", j1ql.ErrMalformedResponse, req.Cursor)
		}
		req = req.withCursor(status.Cursor)
	}
	return s.result(), nil
}

// poll fetches url every PollInterval until the status is terminal or
// PollTimeout elapses.
func (p *DeferredPager) poll(ctx context.Context, s *session, url string) (j1ql.StatusPage, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.PollInterval
	b.MaxInterval = p.config.PollInterval
	b.Multiplier = 1
	b.RandomizationFactor = 0
	b.MaxElapsedTime = p.config.PollTimeout
	b.Reset()
	ticker := backoff.WithContext(b, ctx)

	for polls := 1; ; polls++ {
		status, err := p.source.Poll(ctx, url)
		DeferredPolls.Inc()
		if err != nil {
			return j1ql.StatusPage{}, fmt.Errorf("failed to poll deferred result: %w", err)
		}
		if status.Done() {
			s.logger.Debug().
				Int("polls", polls).
				Str("status", status.Status).
				Msg("Deferred result ready")
			return status, nil
		}

		wait := ticker.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() != nil {
				return j1ql.StatusPage{}, ctx.Err()
			}
			return j1ql.StatusPage{}, fmt.Errorf("%w: still %s after %d polls", ErrPollTimeout, status.Status, polls)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return j1ql.StatusPage{}, ctx.Err()
		case <-timer.C:
		}
	}
}
