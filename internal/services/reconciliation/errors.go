package reconciliation

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned when a worker is invoked for a job id that no
// longer exists. The worker fails fast and does not retry.
var ErrJobNotFound = errors.New("reconciliation job not found")

// ErrJobNotDispatchable is returned when a dispatch is requested for a job
// that is already PROCESSING or COMPLETED.
var ErrJobNotDispatchable = errors.New("job is not eligible for dispatch")

// ConfigError reports missing or invalid job-scoped configuration. It fails
// the PENDING->PROCESSING transition.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid job configuration: " + e.Reason }

// PersistenceError wraps a failed database operation during a run. Fatal;
// the transaction it occurred in is rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence failure (%s): %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
