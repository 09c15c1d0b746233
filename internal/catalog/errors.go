package catalog

import "errors"

var (
	// ErrLockTimeout is returned when the distributed lock could not be
	// acquired before the context was done.
	ErrLockTimeout = errors.New("timed out waiting for catalog lock")

	// ErrEmptyAlias is returned when an entry has no alias.
	ErrEmptyAlias = errors.New("catalog entry alias must not be empty")

	// ErrEmptyURL is returned when an entry has no URL.
	ErrEmptyURL = errors.New("catalog entry URL must not be empty")

	// ErrCorruptCatalog is returned when the primary store cannot be decoded.
	ErrCorruptCatalog = errors.New("catalog file is corrupt")
)
