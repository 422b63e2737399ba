// Package backend defines the capability set the benchmarker requires from a
// workflow-execution backend: submit a workflow, poll its status, fetch its
// post-run metrics, and cancel it. One Client implementation exists per
// backend protocol variant; implementations are swappable without changing
// the orchestration engine.
package backend

import (
	"context"
	"time"
)

// State of a submitted workflow run as reported by the backend.
type State int

const (
	StateQueued State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "Queued"
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	}
	return "Unknown"
}

// Terminal reports whether the backend will not change the state again.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Status is the result of polling a job handle.
type Status struct {
	State State
	// Failure detail reported by the backend. Only set when State is StateFailed.
	Detail string
}

// JobHandle is the backend-assigned reference to a submitted run.
// A handle must only ever be used against the destination it was issued by.
type JobHandle struct {
	Id          string
	Destination string
	SubmittedAt time.Time
}

// Metrics holds the resource consumption reported by the backend for a
// finished run. Backends that don't report a given value leave it zero.
type Metrics struct {
	QueueTime      time.Duration      `json:"queueTime"`
	Runtime        time.Duration      `json:"runtime"`
	CpuSeconds     float64            `json:"cpuSeconds"`
	MaxMemoryBytes int64              `json:"maxMemoryBytes"`
	// Any further backend-specific measurements, keyed by backend metric name.
	Extra map[string]float64 `json:"extra,omitempty"`
}

// Client is the adapter over one destination's backend protocol.
//
// Submit returns a benchmarkerrors.ErrTransient for retryable failures
// (network blips, rate limits) and a benchmarkerrors.ErrSubmission for
// definitive rejections. Poll returns ErrTransient for retryable failures;
// backend-reported job failure is not an error but a Status with StateFailed.
// Fetch returns a benchmarkerrors.ErrFetch when metrics are unavailable.
// Cancel is best-effort; callers log but do not propagate its error.
// Retry policy belongs to the run executor, never to the adapter.
type Client interface {
	Submit(ctx context.Context, workflow string, params map[string]string) (JobHandle, error)
	Poll(ctx context.Context, handle JobHandle) (Status, error)
	Fetch(ctx context.Context, handle JobHandle) (*Metrics, error)
	Cancel(ctx context.Context, handle JobHandle) error
}

// HealthChecker is implemented by clients that can verify backend
// reachability. A benchmark session health-checks all destinations before
// dispatching the first run, so misconfigured credentials or unreachable
// instances fail fast instead of burning a repetition.
type HealthChecker interface {
	Health(ctx context.Context) error
}
