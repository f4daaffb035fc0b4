package cache

import (
	"strings"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	queryHash := hashString("FIND Host")

	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "query only",
			key:  CacheKey{Account: "acme", Mode: "cursor", Query: "FIND Host"},
			want: "j1:acme:cursor:" + queryHash,
		},
		{
			name: "include deleted",
			key:  CacheKey{Account: "acme", Mode: "cursor", Query: "FIND Host", IncludeDeleted: true},
			want: "j1:acme:cursor:" + queryHash + ":deleted",
		},
		{
			name: "params are sorted",
			key: CacheKey{
				Account: "acme",
				Mode:    "skip_limit",
				Query:   "FIND Host",
				Params:  map[string]string{"skip": "100", "limit": "50"},
			},
			want: "j1:acme:skip_limit:" + queryHash + ":limit=50:skip=100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCacheKey_Variables(t *testing.T) {
	base := CacheKey{Account: "acme", Mode: "cursor", Query: "FIND Host WITH name = $name"}

	a := base
	a.Variables = map[string]any{"name": "web", "env": "prod"}
	b := base
	b.Variables = map[string]any{"env": "prod", "name": "web"}
	c := base
	c.Variables = map[string]any{"name": "db", "env": "prod"}

	if a.String() != b.String() {
		t.Errorf("equal variables produced different keys: %q vs %q", a.String(), b.String())
	}
	if a.String() == c.String() {
		t.Error("different variables produced the same key")
	}
	if !strings.Contains(a.String(), ":vars=") {
		t.Errorf("key %q has no variables hash", a.String())
	}
}

func TestCacheKey_DifferentQueriesDiffer(t *testing.T) {
	a := CacheKey{Account: "acme", Mode: "cursor", Query: "FIND Host"}
	b := CacheKey{Account: "acme", Mode: "cursor", Query: "FIND User"}
	c := CacheKey{Account: "other", Mode: "cursor", Query: "FIND Host"}
	d := CacheKey{Account: "acme", Mode: "deferred", Query: "FIND Host"}

	seen := map[string]bool{}
	for _, k := range []CacheKey{a, b, c, d} {
		if seen[k.String()] {
			t.Errorf("duplicate key %q", k.String())
		}
		seen[k.String()] = true
	}
}

func TestAccountPattern(t *testing.T) {
	if got := AccountPattern("acme"); got != "j1:acme:*" {
		t.Errorf("AccountPattern() = %q, want j1:acme:*", got)
	}
}
