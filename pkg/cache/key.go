package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyPrefix prefixes every cache key.
const KeyPrefix = "j1"

// CacheKey identifies one cached query result.
type CacheKey struct {
	// Account is the JupiterOne account the query ran against
	Account string

	// Mode is the pagination engine ("cursor", "skip_limit", "deferred")
	Mode string

	// Query is the J1QL text; only its hash ends up in the key
	Query string

	// IncludeDeleted mirrors the includeDeleted query flag
	IncludeDeleted bool

	// Params are engine options that change the result (e.g. {"cursor": "abc"})
	Params map[string]string

	// Variables are the J1QL query variables
	Variables map[string]any
}

// String generates a deterministic cache key string.
// Format: j1:account:mode:queryhash[:deleted][:param=val...][:vars=hash]
//
// Example:
//
//	j1:acme:cursor:5d41402abc4b2a76b9719d911017c592...:deleted:cursor=abc
func (k CacheKey) String() string {
	parts := []string{KeyPrefix, k.Account, k.Mode, hashString(k.Query)}

	if k.IncludeDeleted {
		parts = append(parts, "deleted")
	}

	// Add params (sorted for determinism)
	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Params[key]))
		}
	}

	// encoding/json sorts map keys, so equal maps hash equally
	if len(k.Variables) > 0 {
		data, err := json.Marshal(k.Variables)
		if err != nil {
			data = []byte(fmt.Sprintf("%v", k.Variables))
		}
		parts = append(parts, "vars="+hashString(string(data))[:16])
	}

	return strings.Join(parts, ":")
}

// AccountPattern returns the SCAN pattern matching every key of account.
func AccountPattern(account string) string {
	return strings.Join([]string{KeyPrefix, account, "*"}, ":")
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
