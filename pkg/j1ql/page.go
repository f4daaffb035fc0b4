package j1ql

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a response does not have any of the
// expected shapes.
var ErrMalformedResponse = errors.New("malformed response")

// ErrDeferredFailed is returned when a deferred result reports a failed status.
var ErrDeferredFailed = errors.New("deferred query failed")

// StatusInProgress is the status of a deferred result that is not ready yet.
const StatusInProgress = "IN_PROGRESS"

// StatusFailed is the terminal status of a deferred result that could not be computed.
const StatusFailed = "FAILED"

// PageKind identifies the shape of a decoded queryV1 response.
type PageKind int

const (
	// KindInline is a complete record list without a cursor field.
	KindInline PageKind = iota
	// KindCursor is a record list carrying a (possibly empty) cursor.
	KindCursor
	// KindTree is a vertices/edges graph result.
	KindTree
	// KindDeferred carries a download URL instead of data.
	KindDeferred
)

// String implements fmt.Stringer.
func (k PageKind) String() string {
	switch k {
	case KindInline:
		return "inline"
	case KindCursor:
		return "cursor"
	case KindTree:
		return "tree"
	case KindDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("PageKind(%d)", int(k))
	}
}

// Tree is a graph-shaped query result.
type Tree struct {
	Vertices []json.RawMessage `json:"vertices"`
	Edges    []json.RawMessage `json:"edges"`
}

// Page is one decoded queryV1 response.
type Page struct {
	Kind PageKind
	// Type is the server-reported result type ("list", "table", "tree", ...).
	Type    string
	Records []json.RawMessage
	Tree    *Tree
	// Cursor is empty when there are no further pages.
	Cursor string
	URL    string
}

// HasMore reports whether the server issued a continuation cursor.
func (p Page) HasMore() bool {
	return p.Kind == KindCursor && p.Cursor != ""
}

type queryV1Payload struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	Cursor json.RawMessage `json:"cursor"`
	URL    string          `json:"url"`
}

// DecodeQueryV1 decodes a full GraphQL response body of the form
// {"data": {"queryV1": {...}}} into a Page.
func DecodeQueryV1(body []byte) (Page, error) {
	var envelope struct {
		Data struct {
			QueryV1 json.RawMessage `json:"queryV1"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, fmt.Errorf("%w: decode envelope: %v", ErrMalformedResponse, err)
	}
	if isNull(envelope.Data.QueryV1) {
		return Page{}, fmt.Errorf("%w: missing data.queryV1", ErrMalformedResponse)
	}
	return DecodePage(envelope.Data.QueryV1)
}

// DecodePage decodes the queryV1 object itself.
func DecodePage(raw json.RawMessage) (Page, error) {
	var payload queryV1Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Page{}, fmt.Errorf("%w: decode queryV1: %v", ErrMalformedResponse, err)
	}

	data := bytes.TrimSpace(payload.Data)
	if isNull(data) {
		if payload.URL != "" {
			return Page{Kind: KindDeferred, Type: payload.Type, URL: payload.URL}, nil
		}
		return Page{}, fmt.Errorf("%w: queryV1 has neither data nor url", ErrMalformedResponse)
	}

	switch data[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return Page{}, fmt.Errorf("%w: decode data object: %v", ErrMalformedResponse, err)
		}
		_, hasVertices := fields["vertices"]
		_, hasEdges := fields["edges"]
		if !hasVertices || !hasEdges {
			return Page{}, fmt.Errorf("%w: data object is not a tree", ErrMalformedResponse)
		}
		var tree Tree
		if err := json.Unmarshal(data, &tree); err != nil {
			return Page{}, fmt.Errorf("%w: decode tree: %v", ErrMalformedResponse, err)
		}
		return Page{Kind: KindTree, Type: payload.Type, Tree: &tree}, nil

	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(data, &records); err != nil {
			return Page{}, fmt.Errorf("%w: decode data list: %v", ErrMalformedResponse, err)
		}
		page := Page{Kind: KindInline, Type: payload.Type, Records: records}
		if payload.Cursor != nil {
			page.Kind = KindCursor
			cursor, err := decodeCursor(payload.Cursor)
			if err != nil {
				return Page{}, err
			}
			page.Cursor = cursor
		}
		return page, nil

	default:
		return Page{}, fmt.Errorf("%w: unexpected data of type %q", ErrMalformedResponse, payload.Type)
	}
}

// StatusPage is the document served by a deferred download URL.
type StatusPage struct {
	Status string            `json:"status"`
	Data   []json.RawMessage `json:"data"`
	Cursor string            `json:"cursor"`
	Error  string            `json:"error,omitempty"`
}

// Done reports whether the status is terminal.
func (s StatusPage) Done() bool {
	return s.Status != StatusInProgress
}

// HasMore reports whether a further deferred page exists.
func (s StatusPage) HasMore() bool {
	return s.Cursor != ""
}

// DecodeStatusPage decodes a deferred download document.
func DecodeStatusPage(body []byte) (StatusPage, error) {
	var page StatusPage
	if err := json.Unmarshal(body, &page); err != nil {
		return StatusPage{}, fmt.Errorf("%w: decode status page: %v", ErrMalformedResponse, err)
	}
	if page.Status == "" {
		return StatusPage{}, fmt.Errorf("%w: status page has no status", ErrMalformedResponse)
	}
	if strings.EqualFold(page.Status, StatusFailed) {
		return page, fmt.Errorf("%w: %s", ErrDeferredFailed, page.Error)
	}
	return page, nil
}

func decodeCursor(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var cursor string
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return "", fmt.Errorf("%w: cursor is not a string", ErrMalformedResponse)
	}
	return cursor, nil
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
