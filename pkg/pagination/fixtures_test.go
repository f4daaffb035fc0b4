package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jupiterone/jupiterone-client-go/pkg/j1ql"
)

// scriptedPages serves a cursor chain: page i is returned for cursor "c<i>",
// page 0 for the empty cursor.
type scriptedPages struct {
	mu       sync.Mutex
	pages    []j1ql.Page
	requests []PageRequest
	failAt   map[int]error
	jitter   time.Duration
}

func cursorFor(i int) string {
	if i == 0 {
		return ""
	}
	return fmt.Sprintf("c%d", i)
}

func record(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%d}`, n))
}

func records(from, count int) []json.RawMessage {
	out := make([]json.RawMessage, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, record(from+i))
	}
	return out
}

// newCursorPages builds a chain of cursor pages with the given sizes and
// sequentially numbered records. The last page carries no cursor.
func newCursorPages(sizes ...int) *scriptedPages {
	f := &scriptedPages{failAt: map[int]error{}}
	n := 0
	for i, size := range sizes {
		page := j1ql.Page{Kind: j1ql.KindCursor, Type: "list", Records: records(n, size)}
		if i < len(sizes)-1 {
			page.Cursor = cursorFor(i + 1)
		}
		f.pages = append(f.pages, page)
		n += size
	}
	return f
}

func (f *scriptedPages) FetchPage(ctx context.Context, req PageRequest) (j1ql.Page, error) {
	if err := ctx.Err(); err != nil {
		return j1ql.Page{}, err
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	idx := 0
	if req.Cursor != "" {
		if _, err := fmt.Sscanf(req.Cursor, "c%d", &idx); err != nil {
			return j1ql.Page{}, fmt.Errorf("unknown cursor %q", req.Cursor)
		}
	}

	if f.jitter > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(int64(f.jitter)))):
		case <-ctx.Done():
			return j1ql.Page{}, ctx.Err()
		}
	}

	if err, ok := f.failAt[idx]; ok {
		return j1ql.Page{}, err
	}
	if idx >= len(f.pages) {
		return j1ql.Page{}, fmt.Errorf("unknown cursor %q", req.Cursor)
	}
	return f.pages[idx], nil
}

func (f *scriptedPages) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func ids(t testing.TB, result *j1ql.Result) []int {
	t.Helper()
	type rec struct {
		ID int `json:"id"`
	}
	decoded, err := j1ql.DecodeRecords[rec](result.Records)
	if err != nil {
		t.Fatalf("decode records: %v", err)
	}
	out := make([]int, len(decoded))
	for i, r := range decoded {
		out[i] = r.ID
	}
	return out
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func testConfig(workers int) Config {
	cfg := DefaultConfig()
	cfg.MaxWorkers = workers
	cfg.PollInterval = time.Millisecond
	cfg.PollTimeout = time.Second
	return cfg
}
