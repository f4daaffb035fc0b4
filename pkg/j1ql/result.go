package j1ql

import (
	"encoding/json"
	"fmt"
)

// Result is the aggregated outcome of a paginated query. Exactly one of
// Records or Tree is meaningful; IsTree tells which.
type Result struct {
	Records []json.RawMessage `json:"data"`
	Tree    *Tree             `json:"tree,omitempty"`
}

// IsTree reports whether the result is graph-shaped.
func (r *Result) IsTree() bool {
	return r != nil && r.Tree != nil
}

// Len returns the number of records, or vertices for a tree.
func (r *Result) Len() int {
	switch {
	case r == nil:
		return 0
	case r.Tree != nil:
		return len(r.Tree.Vertices)
	default:
		return len(r.Records)
	}
}

// DecodeRecords unmarshals every record into T, preserving order.
func DecodeRecords[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
