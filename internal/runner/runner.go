// Package runner drives a single run request through the job lifecycle
// against a backend client: submit, poll until terminal, fetch metrics.
// Each runner owns its run's timeout and retry policy; a runner always
// produces exactly one terminal run result, whatever happens.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	log "github.com/sirupsen/logrus"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/logging"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/results"
	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend"
)

// State of the run lifecycle. Terminal outcomes are results.RunState;
// these are the in-flight machine states.
type State int

const (
	StatePending State = iota
	StateSubmitting
	StatePolling
	StateFetching
	StateDone
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateSubmitting:
		return "Submitting"
	case StatePolling:
		return "Polling"
	case StateFetching:
		return "Fetching"
	case StateDone:
		return "Done"
	}
	return "Unknown"
}

// How often metrics fetching is attempted before the run is recorded as
// succeeded with missing metrics.
const fetchAttempts = 3

// Runner executes one run request. Not reusable.
type Runner struct {
	request     *plan.RunRequest
	destination *destination.Destination
	client      backend.Client

	state  State
	log    *log.Entry
	handle backend.JobHandle

	dispatched time.Time
	submitted  time.Time
	started    time.Time
	attempts   uint
}

func New(request *plan.RunRequest, dest *destination.Destination, client backend.Client) *Runner {
	return &Runner{
		request:     request,
		destination: dest,
		client:      client,
		state:       StatePending,
		log: log.WithFields(log.Fields{
			"benchmark":   request.Benchmark,
			"workflow":    request.Workflow,
			"destination": request.Destination,
			"run":         request.Index,
		}),
	}
}

// Run drives the request to a terminal state. The returned result is never
// nil; individual run failures are recorded in it, not returned as errors.
// Cancelling ctx transitions the run to Cancelled and issues a best-effort
// backend cancel.
func (r *Runner) Run(ctx context.Context) *results.RunResult {
	r.dispatched = time.Now()

	timeout := r.request.Timeout
	if timeout == 0 {
		timeout = r.destination.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r.transition(StateSubmitting)
	if result := r.submit(ctx, runCtx); result != nil {
		return result
	}

	r.transition(StatePolling)
	status, result := r.poll(ctx, runCtx)
	if result != nil {
		return result
	}
	if status.State == backend.StateFailed {
		return r.terminal(results.RunFailed, status.Detail)
	}

	r.transition(StateFetching)
	metrics := r.fetch(runCtx)
	if metrics == nil {
		// Cancellation during the fetch still ends the run as cancelled,
		// not as a degraded success.
		if ctx.Err() != nil {
			return r.terminal(results.RunCancelled, "session cancelled")
		}
		return r.terminalWithMetrics(results.RunSucceededMetricsMissing, nil, "")
	}
	return r.terminalWithMetrics(results.RunSucceeded, metrics, "")
}

// submit performs the submission phase. It returns a terminal result if the
// run ended during submission, or nil if a job handle was obtained.
func (r *Runner) submit(sessionCtx, runCtx context.Context) *results.RunResult {
	err := retry.Do(
		func() error {
			r.attempts++
			handle, err := r.client.Submit(runCtx, r.request.Workflow, r.request.Params)
			if err != nil {
				return err
			}
			r.handle = handle
			return nil
		},
		retry.Attempts(r.destination.Retry.MaxAttempts),
		retry.Delay(r.destination.Retry.Backoff),
		retry.DelayType(retry.BackOffDelay),
		// Interrupts backoff sleeps, so cancellation and timeout fire
		// without waiting out the configured delay.
		retry.Context(runCtx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return benchmarkerrors.IsTransient(err) && runCtx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			r.log.WithError(err).Warnf("submit attempt %d failed, retrying", n+1)
		}),
	)
	if err == nil {
		r.submitted = time.Now()
		return nil
	}
	if runCtx.Err() != nil {
		return r.interrupted(sessionCtx)
	}
	if benchmarkerrors.IsTransient(err) {
		return r.terminal(results.RunFailed, fmt.Sprintf("submission exhausted retries: %s", err))
	}
	return r.terminal(results.RunFailed, err.Error())
}

// poll watches the job until the backend reports a terminal state. It returns
// either the terminal status, or a terminal result if the run ended during
// polling (timeout, cancellation, or unreliable polling).
func (r *Runner) poll(sessionCtx, runCtx context.Context) (backend.Status, *results.RunResult) {
	ticker := time.NewTicker(r.destination.PollInterval)
	defer ticker.Stop()

	// The first poll happens immediately; receiving on a closed channel
	// returns at once (the ticker takes over afterwards).
	first := make(chan time.Time)
	close(first)
	next := (<-chan time.Time)(first)

	consecutiveFailures := 0
	for {
		select {
		case <-runCtx.Done():
			return backend.Status{}, r.interrupted(sessionCtx)
		case <-next:
			next = ticker.C
			status, err := r.client.Poll(runCtx, r.handle)
			if err != nil {
				if runCtx.Err() != nil {
					return backend.Status{}, r.interrupted(sessionCtx)
				}
				consecutiveFailures++
				r.log.WithError(err).Warnf("poll failed (%d consecutive)", consecutiveFailures)
				if consecutiveFailures > r.destination.MaxPollFailures {
					r.bestEffortCancel()
					return backend.Status{}, r.terminal(results.RunFailed, fmt.Sprintf("polling unreliable: %s", err))
				}
				continue
			}
			consecutiveFailures = 0
			if status.State == backend.StateRunning && r.started.IsZero() {
				r.started = time.Now()
				r.log.Debug("run started on backend")
			}
			if status.State.Terminal() {
				return status, nil
			}
		}
	}
}

// fetch retrieves post-run metrics with a small bounded retry.
// Returns nil if metrics are unavailable; that never fails the run.
func (r *Runner) fetch(runCtx context.Context) *backend.Metrics {
	var metrics *backend.Metrics
	err := retry.Do(
		func() error {
			m, err := r.client.Fetch(runCtx, r.handle)
			if err != nil {
				return err
			}
			metrics = m
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(r.destination.Retry.Backoff),
		retry.Context(runCtx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return runCtx.Err() == nil }),
	)
	if err != nil {
		r.log.WithError(err).Warn("metrics unavailable, recording run as succeeded with missing metrics")
		return nil
	}
	return metrics
}

// interrupted produces the terminal result for a run cut short by its
// deadline or by session cancellation, and issues a best-effort cancel.
func (r *Runner) interrupted(sessionCtx context.Context) *results.RunResult {
	r.bestEffortCancel()
	if sessionCtx.Err() != nil {
		return r.terminal(results.RunCancelled, "session cancelled")
	}
	return r.terminal(results.RunTimedOut, "run exceeded its timeout")
}

// bestEffortCancel tells the backend to stop the job, if one was submitted.
// Errors are logged, never propagated.
func (r *Runner) bestEffortCancel() {
	if r.handle.Id == "" {
		return
	}
	// The run's own context may already be dead at this point.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.client.Cancel(ctx, r.handle); err != nil {
		logging.WithStacktrace(r.log, err).Warn("best-effort cancel failed")
	}
}

func (r *Runner) terminal(state results.RunState, detail string) *results.RunResult {
	return r.terminalWithMetrics(state, nil, detail)
}

func (r *Runner) terminalWithMetrics(state results.RunState, metrics *backend.Metrics, detail string) *results.RunResult {
	r.transition(StateDone)
	finished := time.Now()
	result := &results.RunResult{
		Request:  r.request,
		State:    state,
		Finished: finished,
		Metrics:  metrics,
		Attempts: r.attempts,
		Error:    detail,
	}
	result.TotalDuration = finished.Sub(r.dispatched)
	if !r.submitted.IsZero() {
		result.Submitted = r.submitted
		result.SubmitLatency = r.submitted.Sub(r.dispatched)
	}
	if !r.started.IsZero() {
		result.Started = r.started
		result.QueueTime = r.started.Sub(r.submitted)
		result.RunTime = finished.Sub(r.started)
	}
	r.log.WithField("state", string(state)).Infof("run finished in %s", result.TotalDuration)
	return result
}

func (r *Runner) transition(next State) {
	r.log.Debugf("%s -> %s", r.state, next)
	r.state = next
}
