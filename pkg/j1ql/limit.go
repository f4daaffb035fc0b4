package j1ql

import (
	"regexp"
	"strconv"
)

var inlineLimitPattern = regexp.MustCompile(`(?i)LIMIT\s+(\d+)`)

// InlineLimit returns the first LIMIT n embedded in the query text, or 0 when
// the query carries no usable cap. A literal LIMIT 0 is treated as no cap.
func InlineLimit(query string) int {
	match := inlineLimitPattern.FindStringSubmatch(query)
	if match == nil {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// LimitReached reports whether count satisfies a non-zero limit.
func LimitReached(count, limit int) bool {
	return limit > 0 && count >= limit
}

// Truncate trims records to limit entries. A zero limit leaves records untouched.
func Truncate[T any](records []T, limit int) []T {
	if limit <= 0 || len(records) <= limit {
		return records
	}
	return records[:limit]
}
