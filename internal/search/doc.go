// Package search queries the repository search API for one star-count window.
//
// A search call asks for the most-starred repositories inside the window,
// sorted by stars descending, one page of at most 100 items. Responses are
// classified into the crawler's error taxonomy:
//
//   - ErrRateLimited: 403/429 persisted through the bounded retry loop
//   - ErrInvalidQuery: 422, the window itself was rejected and must not be retried
//   - ErrTransient: any other failure; the window is abandoned for this iteration
//
// Rate-limit handling is delegated to ratelimit.Governor. Retries are an
// explicit loop with a maximum attempt count.
package search
