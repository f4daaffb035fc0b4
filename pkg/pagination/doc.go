// Package pagination turns a single J1QL query into a complete, ordered result
// set by driving a single-page fetcher until the server runs out of pages.
//
// Three engines are provided:
//
//   - CursorPager follows server-issued cursors. With MaxWorkers > 1 page
//     fetches run on a bounded pool and completed pages are reassembled in
//     cursor order before they are appended to the result.
//   - SkipLimitPager is the legacy offset engine. A page shorter than
//     j1ql.SkipCount ends the loop.
//   - DeferredPager submits the query with deferredResponse FORCE, polls the
//     returned URL until its status leaves IN_PROGRESS and follows the status
//     page cursor.
//
// Every engine honors an inline LIMIT found in the query text: it stops
// requesting pages once the cap is met and truncates the final list.
//
// Example usage:
//
//	pager := pagination.NewCursorPager(fetcher, pagination.DefaultConfig())
//	result, err := pager.FetchAll(ctx, pagination.PageRequest{Query: "FIND Host"})
//
// FetchConnection walks GraphQL connections paginated with
// pageInfo{hasNextPage endCursor}, which the admin list queries use.
package pagination
