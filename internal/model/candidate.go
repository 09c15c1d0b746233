package model

import "fmt"

// Candidate is a repository returned by a search call.
// It is ephemeral: produced by one search call and consumed within the same batch.
type Candidate struct {
	// Name is the repository name without the owner (e.g., "socket.io").
	Name string `json:"name"`

	// FullName is the "owner/name" form, used only for logging.
	FullName string `json:"fullName,omitempty"`

	// Homepage is the published homepage URL of the repository.
	Homepage string `json:"homepage"`

	// Stars is the rank metric the search window is expressed in.
	Stars int `json:"stars"`

	// Description is the repository description, may be empty.
	Description string `json:"description,omitempty"`
}

// Window is an inclusive star-count range [Min, Max].
type Window struct {
	Min int
	Max int
}

// String renders the window in search qualifier syntax ("min..max").
func (w Window) String() string {
	return fmt.Sprintf("%d..%d", w.Min, w.Max)
}

// FailureKind classifies why a search call produced no usable batch.
type FailureKind int

const (
	// FailureNone means the search call succeeded.
	FailureNone FailureKind = iota

	// FailureRateLimited means the quota was exhausted even after bounded retries.
	// The same window is retried later.
	FailureRateLimited

	// FailureInvalidQuery means the API rejected the window itself.
	// The window is treated as consumed without data.
	FailureInvalidQuery

	// FailureTransient means any other failure (5xx, network, decode).
	// The window is retried on the next iteration.
	FailureTransient
)

// String returns a human-readable representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureRateLimited:
		return "rate-limited"
	case FailureInvalidQuery:
		return "invalid-query"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// BatchResult summarizes one search call for the scheduler.
// MinRank and MaxRank are only meaningful when Count > 0.
type BatchResult struct {
	Count   int
	MinRank int
	MaxRank int
	Failure FailureKind
}

// NewBatchResult builds a BatchResult from the candidates of a successful call.
func NewBatchResult(candidates []Candidate) BatchResult {
	result := BatchResult{Count: len(candidates)}
	for i, c := range candidates {
		if i == 0 || c.Stars < result.MinRank {
			result.MinRank = c.Stars
		}
		if i == 0 || c.Stars > result.MaxRank {
			result.MaxRank = c.Stars
		}
	}
	return result
}

// FailedBatch builds a BatchResult for a search call that failed with kind.
func FailedBatch(kind FailureKind) BatchResult {
	return BatchResult{Failure: kind}
}

// Position is the window position of a sweep: the current upper bound of the
// rank space still to visit, and the width of the next window below it.
type Position struct {
	Ceiling  int
	Gradient int
}
