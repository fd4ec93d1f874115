package config

import (
	"errors"

	"go.uber.org/multierr"
)

var (
	// ErrNoSource indicates the opener returned neither a source nor an error.
	ErrNoSource = errors.New("opener returned no source")
	// ErrLoadPanic indicates resolution was interrupted by a panic.
	ErrLoadPanic = errors.New("configuration load panicked")
)

// Status describes the outcome of a Resolver.Load call.
type Status int

const (
	// StatusApplied means the source was read and every recognised key resolved cleanly.
	StatusApplied Status = iota
	// StatusPartial means the source was read but some values were malformed and ignored.
	StatusPartial
	// StatusSkipped means an earlier Load already resolved the settings.
	StatusSkipped
	// StatusFailed means the source could not be acquired or resolution was interrupted.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusApplied:
		return "applied"
	case StatusPartial:
		return "partial"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LoadResult reports what Load did. It is diagnostic only: Load never fails
// its caller, and settings resolved before a failure stay applied.
type LoadResult struct {
	Status Status
	Path   string
	// Err holds the acquisition failure or every ignored value, combined.
	Err error

	port    int
	hasPort bool
}

// Port returns the server port resolved from server.port, if any.
func (r LoadResult) Port() (int, bool) {
	return r.port, r.hasPort
}

// Issues splits Err into its individual causes.
func (r LoadResult) Issues() []error {
	return multierr.Errors(r.Err)
}

func (r *LoadResult) addIssue(err error) {
	r.Err = multierr.Append(r.Err, err)
}
