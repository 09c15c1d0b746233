package model

import "time"

// StopReason tells why a crawl run ended.
type StopReason int

const (
	// StopBudget means the wall-clock budget elapsed.
	StopBudget StopReason = iota

	// StopExhausted means the window fell below the floor and was reset to the top.
	StopExhausted

	// StopInterrupted means the operator interrupted the run.
	StopInterrupted
)

// String returns a human-readable representation of the stop reason.
func (r StopReason) String() string {
	switch r {
	case StopBudget:
		return "time budget exceeded"
	case StopExhausted:
		return "search space exhausted"
	case StopInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Summary is the end-of-run report of a crawl.
type Summary struct {
	// NewFindings counts catalog entries added during this run.
	NewFindings int

	// Batches counts search windows processed (including failed ones).
	Batches int

	// Probed counts domains probed during this run.
	Probed int

	// StopReason tells why the run ended.
	StopReason StopReason

	// Elapsed is the wall-clock duration of the run.
	Elapsed time.Duration

	// Ceiling and Gradient are the persisted window position at exit.
	Ceiling  int
	Gradient int
}
