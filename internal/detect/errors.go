package detect

import "errors"

var (
	// ErrEmptyMarker is returned when a MarkerProber is created without a marker.
	ErrEmptyMarker = errors.New("marker must not be empty")

	// ErrUnexpectedStatus is returned when a fetched page answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)
