// Package ratelimit keeps the crawler under the search API's per-minute quota.
//
// The Governor reads the quota headers of every search response
// (X-RateLimit-Remaining, X-RateLimit-Limit, X-RateLimit-Reset). When the
// remaining quota drops to the reserve buffer, the calling goroutine blocks
// until the quota window resets. Hard-limit responses (403/429) run the same
// computation through Backoff, which always waits.
//
// Both waits honour context cancellation so an operator interrupt is never
// stuck behind a quota reset.
package ratelimit
