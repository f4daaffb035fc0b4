// Package j1ql holds the wire-level pieces of the JupiterOne query API:
// GraphQL documents, the decoded page shapes returned by queryV1, and the
// inline LIMIT policy applied to aggregated results.
//
// A queryV1 response takes one of four shapes, decoded once into a Page:
//
//   - KindInline: a complete list of records with no cursor field.
//   - KindCursor: a list of records plus an optional continuation cursor.
//   - KindTree: a graph (vertices + edges) result that is never paginated.
//   - KindDeferred: a download URL to poll instead of data.
//
// Polling a deferred URL yields a StatusPage.
package j1ql
