// Package destination holds the registry of configured execution backends.
// A Destination bundles connection parameters with the concurrency, timeout
// and retry policy the scheduler and run executors enforce for it.
package destination

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollFailures = 5
	DefaultMaxAttempts     = 3
	DefaultBackoff         = 500 * time.Millisecond
)

// RetryPolicy bounds submission retries for a single run.
type RetryPolicy struct {
	// Total submit attempts per run, including the first one.
	MaxAttempts uint
	// Initial delay between attempts. Doubles on every retry.
	Backoff time.Duration
}

// Destination is one configured execution backend. Immutable once registered.
type Destination struct {
	Name              string
	Url               string
	ApiKey            string
	MaxConcurrentRuns int
	// Default per-run timeout. Individual runs may override it.
	Timeout time.Duration
	// Interval between successive status polls.
	PollInterval time.Duration
	// Consecutive transient poll failures tolerated before the run fails.
	MaxPollFailures int
	Retry           RetryPolicy
}

// Registry maps destination names to their configuration. Registrations are
// only accepted until Freeze is called; a benchmark session freezes the
// registry before dispatching any run.
type Registry struct {
	mu           sync.RWMutex
	destinations map[string]*Destination
	frozen       bool
}

func NewRegistry() *Registry {
	return &Registry{destinations: make(map[string]*Destination)}
}

// Register validates and stores a destination, applying defaults for
// unset poll and retry settings.
func (r *Registry) Register(d Destination) error {
	if err := validate(d); err != nil {
		return err
	}
	applyDefaults(&d)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "destination",
			Value:   d.Name,
			Message: "registry is read-only once a session has started",
		})
	}
	if _, ok := r.destinations[d.Name]; ok {
		return errors.WithStack(&benchmarkerrors.ErrAlreadyExists{
			Type:  "destination",
			Value: d.Name,
		})
	}
	r.destinations[d.Name] = &d
	return nil
}

// Resolve returns the destination registered under name.
func (r *Registry) Resolve(name string) (*Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.destinations[name]
	if !ok {
		return nil, errors.WithStack(&benchmarkerrors.ErrNotFound{
			Type:  "destination",
			Value: name,
		})
	}
	return d, nil
}

// Names returns all registered destination names, in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.destinations))
	for name := range r.destinations {
		names = append(names, name)
	}
	return names
}

// Freeze makes the registry read-only. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

func validate(d Destination) error {
	if d.Name == "" {
		return errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "name",
			Value:   d.Name,
			Message: "not provided",
		})
	}
	if d.MaxConcurrentRuns <= 0 {
		return errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "maxConcurrentRuns",
			Value:   d.MaxConcurrentRuns,
			Message: "must be positive",
		})
	}
	if d.Timeout <= 0 {
		return errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "timeout",
			Value:   d.Timeout,
			Message: "must be positive",
		})
	}
	return nil
}

func applyDefaults(d *Destination) {
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.MaxPollFailures == 0 {
		d.MaxPollFailures = DefaultMaxPollFailures
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if d.Retry.Backoff == 0 {
		d.Retry.Backoff = DefaultBackoff
	}
}
