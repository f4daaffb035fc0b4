package pagination

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
	"github.com/jupiterone/jupiterone-client-go/pkg/logging"
)

// session is the per-call state of one paginated query.
type session struct {
	id      string
	mode    string
	limit   int
	records []json.RawMessage
	pages   int
	start   time.Time
	logger  zerolog.Logger
}

func newSession(logger zerolog.Logger, mode, query string) *session {
	id := uuid.NewString()
	s := &session{
		id:     id,
		mode:   mode,
		limit:  j1ql.InlineLimit(query),
		start:  time.Now(),
		logger: logging.WithSession(logger, id).With().Str("mode", mode).Logger(),
	}
	if s.limit > 0 {
		s.logger.Debug().Int("inline_limit", s.limit).Msg("Inline limit detected")
	}
	return s
}

func (s *session) add(records []json.RawMessage) {
	s.records = append(s.records, records...)
	s.pages++
	s.logger.Debug().
		Int("page", s.pages).
		Int("page_records", len(records)).
		Int("records", len(s.records)).
		Msg("Page appended")
}

func (s *session) limitReached() bool {
	return j1ql.LimitReached(len(s.records), s.limit)
}

// result returns the aggregated records truncated to the inline limit.
func (s *session) result() *j1ql.Result {
	records := j1ql.Truncate(s.records, s.limit)
	if records == nil {
		records = []json.RawMessage{}
	}
	SessionRecords.WithLabelValues(s.mode).Observe(float64(len(records)))
	s.logger.Info().
		Int("pages", s.pages).
		Int("records", len(records)).
		Dur("duration", time.Since(s.start)).
		Msg("Pagination complete")
	return &j1ql.Result{Records: records}
}

// tree returns a graph-shaped first page untouched.
func (s *session) tree(page j1ql.Page) *j1ql.Result {
	s.logger.Info().
		Int("vertices", len(page.Tree.Vertices)).
		Int("edges", len(page.Tree.Edges)).
		Dur("duration", time.Since(s.start)).
		Msg("Tree result, pagination skipped")
	return &j1ql.Result{Tree: page.Tree}
}
