package supervisor

import "errors"

// Lifecycle error taxonomy. Callers match with errors.Is; the control server
// maps each kind to a fixed failure payload.
var (
	ErrNotFound       = errors.New("service does not exist")
	ErrAlreadyRunning = errors.New("service is already running")
	ErrNotRunning     = errors.New("service is not running")
	ErrProcessLookup  = errors.New("recorded pid does not resolve to a live process")
)
