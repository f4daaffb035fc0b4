package j1ql

import (
	"errors"
	"testing"
)

func TestDecodeQueryV1(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantKind   PageKind
		wantCount  int
		wantCursor string
		wantURL    string
		wantErr    bool
	}{
		{
			name:      "inline list without cursor field",
			body:      `{"data":{"queryV1":{"type":"list","data":[{"id":"1"},{"id":"2"}]}}}`,
			wantKind:  KindInline,
			wantCount: 2,
		},
		{
			name:       "cursor page",
			body:       `{"data":{"queryV1":{"type":"list","data":[{"id":"1"}],"cursor":"c1"}}}`,
			wantKind:   KindCursor,
			wantCount:  1,
			wantCursor: "c1",
		},
		{
			name:      "last cursor page with null cursor",
			body:      `{"data":{"queryV1":{"type":"list","data":[{"id":"1"}],"cursor":null}}}`,
			wantKind:  KindCursor,
			wantCount: 1,
		},
		{
			name:     "tree",
			body:     `{"data":{"queryV1":{"type":"tree","data":{"vertices":[{"id":"v1"}],"edges":[]}}}}`,
			wantKind: KindTree,
		},
		{
			name:     "deferred pointer",
			body:     `{"data":{"queryV1":{"type":"deferred","url":"https://example.com/r/1","data":null}}}`,
			wantKind: KindDeferred,
			wantURL:  "https://example.com/r/1",
		},
		{
			name:    "object that is not a tree",
			body:    `{"data":{"queryV1":{"type":"table","data":{"vertices":[]}}}}`,
			wantErr: true,
		},
		{
			name:    "missing queryV1",
			body:    `{"data":{}}`,
			wantErr: true,
		},
		{
			name:    "neither data nor url",
			body:    `{"data":{"queryV1":{"type":"list"}}}`,
			wantErr: true,
		},
		{
			name:    "scalar data",
			body:    `{"data":{"queryV1":{"type":"list","data":42}}}`,
			wantErr: true,
		},
		{
			name:    "cursor of wrong type",
			body:    `{"data":{"queryV1":{"type":"list","data":[],"cursor":7}}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodeQueryV1([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeQueryV1() expected error, got page %+v", page)
				}
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeQueryV1() unexpected error: %v", err)
			}
			if page.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", page.Kind, tt.wantKind)
			}
			if len(page.Records) != tt.wantCount {
				t.Errorf("len(Records) = %d, want %d", len(page.Records), tt.wantCount)
			}
			if page.Cursor != tt.wantCursor {
				t.Errorf("Cursor = %q, want %q", page.Cursor, tt.wantCursor)
			}
			if page.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", page.URL, tt.wantURL)
			}
			if tt.wantKind == KindTree && (page.Tree == nil || len(page.Tree.Vertices) != 1) {
				t.Errorf("Tree = %+v, want one vertex", page.Tree)
			}
		})
	}
}

func TestPage_HasMore(t *testing.T) {
	tests := []struct {
		name string
		page Page
		want bool
	}{
		{"cursor page with cursor", Page{Kind: KindCursor, Cursor: "abc"}, true},
		{"cursor page without cursor", Page{Kind: KindCursor}, false},
		{"inline page", Page{Kind: KindInline}, false},
		{"tree page", Page{Kind: KindTree, Cursor: "ignored"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.page.HasMore(); got != tt.want {
				t.Errorf("HasMore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeStatusPage(t *testing.T) {
	page, err := DecodeStatusPage([]byte(`{"status":"IN_PROGRESS"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Done() {
		t.Error("IN_PROGRESS page reported as done")
	}

	page, err = DecodeStatusPage([]byte(`{"status":"COMPLETED","data":[{"id":"1"}],"cursor":"next"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.Done() || !page.HasMore() || len(page.Data) != 1 {
		t.Errorf("unexpected page: %+v", page)
	}

	page, err = DecodeStatusPage([]byte(`{"status":"COMPLETED","data":[],"cursor":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasMore() {
		t.Error("null cursor should end pagination")
	}

	if _, err := DecodeStatusPage([]byte(`{"data":[]}`)); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("missing status error = %v, want ErrMalformedResponse", err)
	}

	if _, err := DecodeStatusPage([]byte(`{"status":"FAILED","error":"boom"}`)); !errors.Is(err, ErrDeferredFailed) {
		t.Errorf("failed status error = %v, want ErrDeferredFailed", err)
	}
}

func TestPageKind_String(t *testing.T) {
	if KindDeferred.String() != "deferred" {
		t.Errorf("KindDeferred.String() = %q", KindDeferred.String())
	}
	if PageKind(42).String() != "PageKind(42)" {
		t.Errorf("unknown kind string = %q", PageKind(42).String())
	}
}
