package pagination

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
)

// SkipLimitPager is the legacy offset engine. New callers should use CursorPager.
type SkipLimitPager struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewSkipLimitPager creates a new skip/limit pager.
func NewSkipLimitPager(fetcher PageFetcher, config Config) *SkipLimitPager {
	return &SkipLimitPager{
		fetcher: fetcher,
		config:  config.withDefaults(),
		logger:  logging.NewLogger("pagination"),
	}
}

// FetchAll appends "SKIP <page*skip> LIMIT <limit>" to req.Query and requests
// pages until one returns fewer than j1ql.SkipCount records. A page of exactly
// j1ql.SkipCount records is never treated as the last one.
// Non-positive skip or limit fall back to j1ql.SkipCount and j1ql.LimitCount.
func (p *SkipLimitPager) FetchAll(ctx context.Context, req PageRequest, skip, limit int) (*j1ql.Result, error) {
	if skip <= 0 {
		skip = j1ql.SkipCount
	}
	if limit <= 0 {
		limit = j1ql.LimitCount
	}

	s := newSession(p.logger, modeSkipLimit, req.Query)
	for page := 0; ; page++ {
		pageReq := req
		pageReq.Query = fmt.Sprintf("%s SKIP %d LIMIT %d", req.Query, page*skip, limit)
		pageReq.Cursor = ""

		resp, err := fetchPage(ctx, p.fetcher, p.config.PageTimeout, modeSkipLimit, pageReq)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page+1, err)
		}
		if resp.Kind == j1ql.KindTree {
			return s.tree(resp), nil
		}
		if err := requireList(resp); err != nil {
			return nil, err
		}

		s.add(resp.Records)
		if len(resp.Records) < j1ql.SkipCount || s.limitReached() {
			break
		}
	}
	return s.result(), nil
}
