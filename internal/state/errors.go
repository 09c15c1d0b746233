package state

import "errors"

// ErrStateCorrupt is returned by Load together with a default state when the
// state file exists but cannot be used. Callers log it and continue.
var ErrStateCorrupt = errors.New("state file is corrupt")
