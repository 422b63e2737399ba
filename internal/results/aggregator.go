// Package results collects per-run outcomes into a result set with summary
// statistics grouped by (destination, workflow, parameter signature).
// Results arrive in completion order, which is unrelated to plan order; the
// final result set is ordered by plan index. Group statistics are derived
// from the retained run results alone, so a snapshot is always recomputable.
package results

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend"
)

// RunState is the terminal state of one run.
type RunState string

const (
	RunSucceeded RunState = "Succeeded"
	// The run succeeded but its post-run metrics could not be fetched.
	// A degraded success, not a failure.
	RunSucceededMetricsMissing RunState = "SucceededMetricsMissing"
	RunFailed                  RunState = "Failed"
	RunTimedOut                RunState = "TimedOut"
	RunCancelled               RunState = "Cancelled"
)

// Succeeded reports whether the state counts as a successful run.
func (s RunState) Succeeded() bool {
	return s == RunSucceeded || s == RunSucceededMetricsMissing
}

// RunResult is the terminal outcome and measurements for one run request.
// Immutable after creation.
type RunResult struct {
	Request *plan.RunRequest `json:"request"`
	State   RunState         `json:"state"`

	Submitted time.Time `json:"submitted,omitempty"`
	Started   time.Time `json:"started,omitempty"`
	Finished  time.Time `json:"finished"`

	// Time from dispatch until the backend acknowledged the submission.
	SubmitLatency time.Duration `json:"submitLatency"`
	// Time from submission until the backend first reported the run as running.
	QueueTime time.Duration `json:"queueTime"`
	// Time from first running until the backend reported a terminal state.
	RunTime time.Duration `json:"runTime"`
	// Time from dispatch until the terminal transition.
	TotalDuration time.Duration `json:"totalDuration"`

	// Resource consumption reported by the backend, if available.
	Metrics *backend.Metrics `json:"metrics,omitempty"`
	// Submit attempts used, including the successful one.
	Attempts uint `json:"attempts"`
	// Failure detail for failed, timed-out or cancelled runs.
	Error string `json:"error,omitempty"`
}

// GroupKey identifies one aggregation bucket.
type GroupKey struct {
	Destination    string `json:"destination"`
	Workflow       string `json:"workflow"`
	ParamSignature string `json:"paramSignature"`
}

// GroupStats summarises all measured (non-warmup) runs of one group.
// Duration statistics cover successful runs only.
type GroupStats struct {
	Key            GroupKey    `json:"key"`
	Count          int         `json:"count"`
	Succeeded      int         `json:"succeeded"`
	Failed         int         `json:"failed"`
	TimedOut       int         `json:"timedOut"`
	Cancelled      int         `json:"cancelled"`
	MetricsMissing int         `json:"metricsMissing"`
	FailureRate    float64     `json:"failureRate"`
	Durations      *Statistics `json:"durations,omitempty"`
}

// ResultSet is the collection of run results plus derived summary statistics.
type ResultSet struct {
	// Runs ordered by plan index. Partial snapshots contain only the runs
	// that have reached a terminal state so far.
	Runs []*RunResult `json:"runs"`
	// Per-group summaries ordered by key, for deterministic serialization.
	Groups []*GroupStats `json:"groups"`
	// Total number of runs the plan expanded to.
	Expected int `json:"expected"`
	// True if the set was taken before every run had a terminal result.
	Partial bool `json:"partial"`
}

// Aggregator accepts run results as they complete. Safe for concurrent use.
type Aggregator struct {
	mu       sync.Mutex
	expected int
	results  []*RunResult
}

func NewAggregator(expected int) *Aggregator {
	return &Aggregator{expected: expected}
}

// Add records a terminal run result.
func (agg *Aggregator) Add(result *RunResult) {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	agg.results = append(agg.results, result)
}

// Completed returns the number of terminal results recorded so far.
func (agg *Aggregator) Completed() int {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	return len(agg.results)
}

// Snapshot returns a partial result set reflecting the runs completed so far.
// Safe to call at any time during a session.
func (agg *Aggregator) Snapshot() *ResultSet {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	return agg.build(len(agg.results) < agg.expected)
}

// Finalize returns the complete result set. Unless partial is set it fails
// with ErrIncomplete while runs are still outstanding. A set finalized with
// partial set is always marked partial, even when every run has a terminal
// result: a cancelled session left runs unmeasured.
func (agg *Aggregator) Finalize(partial bool) (*ResultSet, error) {
	agg.mu.Lock()
	defer agg.mu.Unlock()
	if len(agg.results) < agg.expected && !partial {
		return nil, errors.WithStack(&benchmarkerrors.ErrIncomplete{
			Expected:  agg.expected,
			Completed: len(agg.results),
		})
	}
	return agg.build(partial || len(agg.results) < agg.expected), nil
}

// build assembles a result set from the recorded results.
// Callers must hold agg.mu.
func (agg *Aggregator) build(partial bool) *ResultSet {
	runs := append([]*RunResult{}, agg.results...)
	sort.Slice(runs, func(i, j int) bool { return runs[i].Request.Index < runs[j].Request.Index })
	return &ResultSet{
		Runs:     runs,
		Groups:   groupStats(runs),
		Expected: agg.expected,
		Partial:  partial,
	}
}

// groupStats recomputes all group summaries from run results alone.
func groupStats(runs []*RunResult) []*GroupStats {
	groups := make(map[GroupKey]*GroupStats)
	durationsByKey := make(map[GroupKey][]time.Duration)
	for _, run := range runs {
		if run.Request.Warmup {
			continue
		}
		key := GroupKey{
			Destination:    run.Request.Destination,
			Workflow:       run.Request.Workflow,
			ParamSignature: run.Request.ParamSignature,
		}
		group, ok := groups[key]
		if !ok {
			group = &GroupStats{Key: key}
			groups[key] = group
		}
		group.Count++
		switch run.State {
		case RunSucceeded:
			group.Succeeded++
		case RunSucceededMetricsMissing:
			group.Succeeded++
			group.MetricsMissing++
		case RunFailed:
			group.Failed++
		case RunTimedOut:
			group.TimedOut++
		case RunCancelled:
			group.Cancelled++
		}
		if run.State.Succeeded() {
			durationsByKey[key] = append(durationsByKey[key], run.TotalDuration)
		}
	}

	summaries := make([]*GroupStats, 0, len(groups))
	for key, group := range groups {
		group.FailureRate = float64(group.Failed+group.TimedOut) / float64(group.Count)
		if durations := durationsByKey[key]; len(durations) > 0 {
			group.Durations = statistics(durations)
		}
		summaries = append(summaries, group)
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i].Key, summaries[j].Key
		if a.Destination != b.Destination {
			return a.Destination < b.Destination
		}
		if a.Workflow != b.Workflow {
			return a.Workflow < b.Workflow
		}
		return a.ParamSignature < b.ParamSignature
	})
	return summaries
}

// Group returns the summary for a key, or nil if the set has no runs for it.
func (rs *ResultSet) Group(key GroupKey) *GroupStats {
	for _, group := range rs.Groups {
		if group.Key == key {
			return group
		}
	}
	return nil
}
