package configuration

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
)

// Validate checks the whole configuration tree. All problems are collected
// into a single multierror so a user can fix a config file in one pass.
// Destination existence is checked here only by name uniqueness; resolution
// of benchmark destination references happens at plan expansion.
func (c *BenchmarkConfig) Validate() error {
	var result *multierror.Error

	if c.GlobalMaxConcurrentRuns < 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "globalMaxConcurrentRuns",
			Value:   c.GlobalMaxConcurrentRuns,
			Message: "must be non-negative",
		}))
	}
	if len(c.Destinations) == 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "destinations",
			Value:   c.Destinations,
			Message: "at least one destination is required",
		}))
	}
	if len(c.Benchmarks) == 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "benchmarks",
			Value:   c.Benchmarks,
			Message: "at least one benchmark is required",
		}))
	}
	for i, d := range c.Destinations {
		if err := d.Validate(); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "destinations[%d]", i))
		}
	}
	for i, b := range c.Benchmarks {
		if err := b.Validate(); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "benchmarks[%d]", i))
		}
	}
	return result.ErrorOrNil()
}

// Validate checks a single destination entry. The registry re-validates the
// numeric limits on registration; checking here too lets config problems
// surface with their position in the file.
func (d *DestinationConfig) Validate() error {
	var result *multierror.Error
	if d.Name == "" {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "name", Value: d.Name, Message: "not provided",
		}))
	}
	if d.Url == "" {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "url", Value: d.Url, Message: "not provided",
		}))
	}
	if d.MaxConcurrentRuns <= 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "maxConcurrentRuns", Value: d.MaxConcurrentRuns, Message: "must be positive",
		}))
	}
	if d.Timeout <= 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "timeout", Value: fmt.Sprint(d.Timeout), Message: "must be positive",
		}))
	}
	return result.ErrorOrNil()
}

// Validate checks a single benchmark entry.
func (b *BenchmarkSpec) Validate() error {
	var result *multierror.Error
	if b.Name == "" {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "name", Value: b.Name, Message: "not provided",
		}))
	}
	if b.Workflow == "" {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "workflow", Value: b.Workflow, Message: "not provided",
		}))
	}
	if len(b.Destinations) == 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "destinations", Value: b.Destinations, Message: "at least one destination is required",
		}))
	}
	if b.Repetitions <= 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "repetitions", Value: b.Repetitions, Message: "must be positive",
		}))
	}
	if b.WarmupRuns < 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "warmupRuns", Value: b.WarmupRuns, Message: "must be non-negative",
		}))
	}
	if b.Timeout < 0 {
		result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name: "timeout", Value: fmt.Sprint(b.Timeout), Message: "must be non-negative",
		}))
	}
	for key, values := range b.Sweep {
		if len(values) == 0 {
			result = multierror.Append(result, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
				Name: "sweep", Value: key, Message: "parameter sweep is empty",
			}))
		}
	}
	return result.ErrorOrNil()
}
