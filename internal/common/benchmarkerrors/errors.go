// Package benchmarkerrors contains the generic errors returned by components
// of the benchmarker. Callers should classify errors with errors.As (or the
// helpers in this file) rather than matching on error strings.
//
// If multiple errors occur in some function (e.g., if several fields of a
// benchmark spec are invalid), that function should return an error of type
// multierror.Error from package github.com/hashicorp/go-multierror that
// encapsulates those individual errors.
package benchmarkerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrAlreadyExists is a generic error to be returned whenever some resource already exists.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrAlreadyExists struct {
	Type    string // Resource type, e.g., "destination"
	Value   string // Resource name, e.g., "pulsar-cluster"
	Message string // An optional message to include in the error message
}

func (err *ErrAlreadyExists) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q already exists", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q already exists", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	}
	return s
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Configuration problems (invalid spec, invalid destination) are reported
// with this type; anything wrapping an ErrInvalidArgument fails a session
// fast, before any run is dispatched.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "maxConcurrentRuns"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
}

// ErrTransient indicates a backend hiccup expected to be retry-recoverable,
// e.g., a network timeout or rate limiting. Run executors retry transient
// errors with backoff up to the destination's configured attempt budget.
type ErrTransient struct {
	Op      string // The operation that failed, e.g., "submit" or "poll"
	Message string
	Cause   error
}

func (err *ErrTransient) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("transient error in %s: %s: %s", err.Op, err.Message, err.Cause)
	}
	return fmt.Sprintf("transient error in %s: %s", err.Op, err.Message)
}

func (err *ErrTransient) Unwrap() error {
	return err.Cause
}

// ErrSubmission indicates the backend definitively rejected a submission.
// Not retryable; the run fails immediately.
type ErrSubmission struct {
	Workflow string
	Message  string
}

func (err *ErrSubmission) Error() string {
	return fmt.Sprintf("submission of workflow %q rejected: %s", err.Workflow, err.Message)
}

// ErrFetch indicates post-run metrics could not be fetched for a job that
// itself succeeded. Recorded as a degraded success, never as a run failure.
type ErrFetch struct {
	JobId   string
	Message string
}

func (err *ErrFetch) Error() string {
	return fmt.Sprintf("failed to fetch metrics for job %q: %s", err.JobId, err.Message)
}

// ErrIncomplete is returned by Finalize when results are requested before
// every run has reached a terminal state and no partial snapshot was asked for.
type ErrIncomplete struct {
	Expected  int
	Completed int
}

func (err *ErrIncomplete) Error() string {
	return fmt.Sprintf("result set incomplete: %d of %d runs have terminal results", err.Completed, err.Expected)
}

// IsTransient reports whether any error in the chain is an ErrTransient.
func IsTransient(err error) bool {
	var e *ErrTransient
	return errors.As(err, &e)
}

// IsConfigError reports whether any error in the chain is a configuration
// error, i.e., one of the types that must fail a session before dispatch.
func IsConfigError(err error) bool {
	var invalid *ErrInvalidArgument
	if errors.As(err, &invalid) {
		return true
	}
	var notFound *ErrNotFound
	if errors.As(err, &notFound) {
		return true
	}
	var exists *ErrAlreadyExists
	return errors.As(err, &exists)
}
