package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoMarker is returned when no marker is configured for the default prober.
	ErrNoMarker = errors.New("no marker configured: set marker in .starsweep or use --marker")

	// ErrInvalidBudget is returned when the run budget is negative.
	// Zero means the run is not time-boxed.
	ErrInvalidBudget = errors.New("invalid budget: must be non-negative")

	// ErrInvalidTimeout is returned when the HTTP timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the probe concurrency is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidRetryPause is returned when the retry pause is negative.
	ErrInvalidRetryPause = errors.New("invalid retry pause: must be non-negative")

	// ErrInvalidRange is returned when the rank-space bounds are inconsistent:
	// the top, the initial gradient and the minimum gradient must be positive,
	// and the floor must be non-negative and below the top.
	ErrInvalidRange = errors.New("invalid rank range: need top > floor >= 0 and positive gradients")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrMissingPath is returned when the state or catalog path is empty.
	ErrMissingPath = errors.New("state and catalog paths must not be empty")
)
