// Package testutil provides testing utilities for the JupiterOne client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines a canned response of the mock server.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// GraphQLRequest is a GraphQL request body as received by the mock.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
	Flags     map[string]any `json:"flags"`
	Header    http.Header    `json:"-"`
}

// Operation returns the name of the J1QL document: "cursor", "deferred",
// "legacy" or "other".
func (r GraphQLRequest) Operation() string {
	switch {
	case strings.Contains(r.Query, "J1QL_v2"):
		return "cursor"
	case strings.Contains(r.Query, "J1QLDeferredResponse"):
		return "deferred"
	case strings.Contains(r.Query, "J1QL("):
		return "legacy"
	default:
		return "other"
	}
}

// StringVar returns a string variable or "".
func (r GraphQLRequest) StringVar(name string) string {
	s, _ := r.Variables[name].(string)
	return s
}

type deferredJob struct {
	offset int
	polls  int
}

var skipLimitPattern = regexp.MustCompile(`SKIP (\d+) LIMIT (\d+)$`)

// MockJ1 is a scriptable mock of the JupiterOne GraphQL, deferred result and
// synchronization APIs. Records set with SetRecords are served by all three
// query modes; anything else is handled by custom handlers.
type MockJ1 struct {
	server *httptest.Server
	mu     sync.RWMutex

	records  []json.RawMessage
	pageSize int
	// InProgressPolls is the number of IN_PROGRESS answers of every deferred
	// result before it completes.
	InProgressPolls int

	graphQLHandler func(w http.ResponseWriter, req GraphQLRequest)
	handlers       map[string]http.HandlerFunc
	failures       []MockResponse
	deferred       map[string]*deferredJob

	// Tracking
	RequestCount      int
	DeferredPolls     int
	AnonymousPolls    int
	LastRequestHeader http.Header
	graphQLRequests   []GraphQLRequest
	syncPayloads      map[string][]json.RawMessage
}

// NewMockJ1 creates a new mock JupiterOne server.
func NewMockJ1() *MockJ1 {
	mock := &MockJ1{
		pageSize:     2,
		handlers:     make(map[string]http.HandlerFunc),
		deferred:     make(map[string]*deferredJob),
		syncPayloads: make(map[string][]json.RawMessage),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		var failure *MockResponse
		if len(mock.failures) > 0 {
			failure = &mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if failure != nil {
			writeResponse(w, *failure)
			return
		}
		if exists {
			handler(w, r)
			return
		}

		switch {
		case r.URL.Path == "/graphql":
			mock.handleGraphQL(w, r)
		case strings.HasPrefix(r.URL.Path, "/deferred/"):
			mock.handleDeferred(w, r)
		case strings.HasPrefix(r.URL.Path, "/persister/synchronization/jobs"):
			mock.handleSync(w, r)
		default:
			http.NotFound(w, r)
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockJ1) URL() string {
	return m.server.URL
}

// GraphQLURL returns the GraphQL endpoint of the mock.
func (m *MockJ1) GraphQLURL() string {
	return m.server.URL + "/graphql"
}

// Close shuts down the mock server.
func (m *MockJ1) Close() {
	m.server.Close()
}

// SetRecords configures the records served by J1QL queries. Cursor and
// deferred pages hold pageSize records; skip/limit pages follow the SKIP and
// LIMIT of the query text.
func (m *MockJ1) SetRecords(pageSize int, records ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pageSize = pageSize
	m.records = m.records[:0]
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			panic(fmt.Sprintf("testutil: marshal record: %v", err))
		}
		m.records = append(m.records, raw)
	}
}

// SetGraphQLHandler replaces the built-in GraphQL handler.
func (m *MockJ1) SetGraphQLHandler(handler func(w http.ResponseWriter, req GraphQLRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphQLHandler = handler
}

// SetHandler sets a custom handler for a specific path.
func (m *MockJ1) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailNext answers the next n requests, whatever their path, with resp.
func (m *MockJ1) FailNext(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for range n {
		m.failures = append(m.failures, resp)
	}
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockJ1) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetDeferredPolls returns the number of deferred result downloads, and how
// many of them carried no credentials.
func (m *MockJ1) GetDeferredPolls() (total, anonymous int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DeferredPolls, m.AnonymousPolls
}

// GraphQLRequests returns the GraphQL requests received so far.
func (m *MockJ1) GraphQLRequests() []GraphQLRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]GraphQLRequest(nil), m.graphQLRequests...)
}

// SyncPayloads returns the bodies posted to a synchronization endpoint
// suffix ("entities", "relationships", "upload", "finalize" or "jobs").
func (m *MockJ1) SyncPayloads(action string) []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]json.RawMessage(nil), m.syncPayloads[action]...)
}

// WriteGraphQL writes a GraphQL response with the given data object.
func WriteGraphQL(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// WriteGraphQLErrors writes a 200 GraphQL response carrying errors.
func WriteGraphQLErrors(w http.ResponseWriter, messages ...string) {
	errs := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		errs = append(errs, map[string]any{"message": msg})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": nil, "errors": errs})
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func (m *MockJ1) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	req.Header = r.Header.Clone()

	m.mu.Lock()
	m.graphQLRequests = append(m.graphQLRequests, req)
	custom := m.graphQLHandler
	m.mu.Unlock()

	if custom != nil {
		custom(w, req)
		return
	}

	switch req.Operation() {
	case "cursor":
		offset, ok := parseCursor(req.StringVar("cursor"))
		if !ok {
			http.Error(w, `{"error":"bad cursor"}`, http.StatusBadRequest)
			return
		}
		page, next := m.page(offset)
		WriteGraphQL(w, map[string]any{
			"queryV1": map[string]any{"type": "list", "data": page, "cursor": next},
		})

	case "legacy":
		skip, limit := 0, len(m.records)
		if match := skipLimitPattern.FindStringSubmatch(req.StringVar("query")); match != nil {
			skip, _ = strconv.Atoi(match[1])
			limit, _ = strconv.Atoi(match[2])
		}
		WriteGraphQL(w, map[string]any{
			"queryV1": map[string]any{"type": "list", "data": m.window(skip, limit)},
		})

	case "deferred":
		offset, ok := parseCursor(req.StringVar("cursor"))
		if !ok {
			http.Error(w, `{"error":"bad cursor"}`, http.StatusBadRequest)
			return
		}
		m.mu.Lock()
		id := strconv.Itoa(len(m.deferred) + 1)
		m.deferred[id] = &deferredJob{offset: offset}
		m.mu.Unlock()
		WriteGraphQL(w, map[string]any{
			"queryV1": map[string]any{"type": "deferred", "url": m.server.URL + "/deferred/" + id},
		})

	default:
		WriteGraphQLErrors(w, "unsupported operation")
	}
}

func (m *MockJ1) handleDeferred(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/deferred/")

	m.mu.Lock()
	m.DeferredPolls++
	if r.Header.Get("Authorization") == "" {
		m.AnonymousPolls++
	}
	job, ok := m.deferred[id]
	inProgress := ok && job.polls < m.InProgressPolls
	if ok {
		job.polls++
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case !ok:
		http.NotFound(w, r)
	case inProgress:
		json.NewEncoder(w).Encode(map[string]any{"status": "IN_PROGRESS"})
	default:
		page, next := m.page(job.offset)
		json.NewEncoder(w).Encode(map[string]any{"status": "COMPLETED", "data": page, "cursor": next})
	}
}

func (m *MockJ1) handleSync(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/persister/synchronization/"), "/")
	action := parts[len(parts)-1]

	m.mu.Lock()
	m.syncPayloads[action] = append(m.syncPayloads[action], json.RawMessage(body))
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch action {
	case "jobs":
		json.NewEncoder(w).Encode(map[string]any{"job": map[string]any{"id": "job-1", "status": "AWAITING_UPLOADS"}})
	case "finalize":
		json.NewEncoder(w).Encode(map[string]any{"job": map[string]any{"id": parts[1], "status": "FINALIZE_PENDING"}})
	default:
		json.NewEncoder(w).Encode(map[string]any{"job": map[string]any{"id": parts[1], "status": "AWAITING_UPLOADS"}})
	}
}

// page returns the cursor page starting at offset and the cursor of the
// next page, nil on the last page.
func (m *MockJ1) page(offset int) ([]json.RawMessage, any) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page := m.windowLocked(offset, m.pageSize)
	if offset+m.pageSize >= len(m.records) {
		return page, nil
	}
	return page, "c" + strconv.Itoa(offset+m.pageSize)
}

func (m *MockJ1) window(skip, limit int) []json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.windowLocked(skip, limit)
}

func (m *MockJ1) windowLocked(skip, limit int) []json.RawMessage {
	page := []json.RawMessage{}
	for i := skip; i < skip+limit && i < len(m.records); i++ {
		page = append(page, m.records[i])
	}
	return page
}

func parseCursor(cursor string) (int, bool) {
	if cursor == "" {
		return 0, true
	}
	n, err := strconv.Atoi(strings.TrimPrefix(cursor, "c"))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
