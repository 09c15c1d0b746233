package search

import "errors"

// Search failure classes. Callers map these to model.FailureKind.
var (
	// ErrRateLimited is returned when hard-limit responses persisted through
	// every retry attempt.
	ErrRateLimited = errors.New("search rate limited")

	// ErrInvalidQuery is returned when the API rejects the query (HTTP 422),
	// typically an illegal or inverted star range.
	ErrInvalidQuery = errors.New("search query rejected")

	// ErrTransient is returned for any other non-200 response, transport
	// failure or undecodable body.
	ErrTransient = errors.New("search failed")
)
