package importer

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned by job stores when no job exists for an ID.
var ErrJobNotFound = errors.New("import job not found")

// ErrJobTerminal is returned when a mutation targets a job that has already
// reached a terminal state. Terminal jobs are immutable.
var ErrJobTerminal = errors.New("import job is in a terminal state")

// ErrTooManyJobs is returned when all job slots are occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyJobs = errors.New("too many concurrent import jobs, please try again later")

// ParseError is a fatal file-level parse failure. It aborts before any job
// exists; row-level oddities become warnings instead.
type ParseError struct {
	Format string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
