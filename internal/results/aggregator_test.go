package results

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
)

func result(index int, destination string, state RunState, duration time.Duration) *RunResult {
	return &RunResult{
		Request: &plan.RunRequest{
			Index:       index,
			Benchmark:   "bench",
			Workflow:    "wf",
			Destination: destination,
		},
		State:         state,
		Finished:      time.Now(),
		TotalDuration: duration,
	}
}

func TestAggregatorOrdersRunsByPlanIndex(t *testing.T) {
	agg := NewAggregator(3)
	agg.Add(result(2, "a", RunSucceeded, time.Second))
	agg.Add(result(0, "a", RunSucceeded, time.Second))
	agg.Add(result(1, "a", RunSucceeded, time.Second))

	set, err := agg.Finalize(false)
	require.NoError(t, err)
	require.Len(t, set.Runs, 3)
	for i, run := range set.Runs {
		assert.Equal(t, i, run.Request.Index)
	}
	assert.False(t, set.Partial)
}

func TestAggregatorGroupStats(t *testing.T) {
	agg := NewAggregator(6)
	agg.Add(result(0, "a", RunSucceeded, 2*time.Second))
	agg.Add(result(1, "a", RunSucceeded, 4*time.Second))
	agg.Add(result(2, "a", RunFailed, 0))
	agg.Add(result(3, "b", RunSucceededMetricsMissing, 6*time.Second))
	agg.Add(result(4, "b", RunTimedOut, 0))
	agg.Add(result(5, "b", RunCancelled, 0))

	set, err := agg.Finalize(false)
	require.NoError(t, err)
	require.Len(t, set.Groups, 2)

	groupA := set.Group(GroupKey{Destination: "a", Workflow: "wf"})
	require.NotNil(t, groupA)
	assert.Equal(t, 3, groupA.Count)
	assert.Equal(t, 2, groupA.Succeeded)
	assert.Equal(t, 1, groupA.Failed)
	assert.InDelta(t, 1.0/3, groupA.FailureRate, 1e-9)
	require.NotNil(t, groupA.Durations)
	assert.Equal(t, 2*time.Second, groupA.Durations.Min)
	assert.Equal(t, 4*time.Second, groupA.Durations.Max)
	assert.Equal(t, float64(3*time.Second), groupA.Durations.Mean)

	groupB := set.Group(GroupKey{Destination: "b", Workflow: "wf"})
	require.NotNil(t, groupB)
	assert.Equal(t, 3, groupB.Count)
	assert.Equal(t, 1, groupB.Succeeded)
	assert.Equal(t, 1, groupB.MetricsMissing)
	assert.Equal(t, 1, groupB.TimedOut)
	assert.Equal(t, 1, groupB.Cancelled)
}

func TestAggregatorExcludesWarmupRuns(t *testing.T) {
	agg := NewAggregator(2)
	warmup := result(0, "a", RunSucceeded, 10*time.Second)
	warmup.Request.Warmup = true
	agg.Add(warmup)
	agg.Add(result(1, "a", RunSucceeded, 2*time.Second))

	set, err := agg.Finalize(false)
	require.NoError(t, err)

	// Warmup results are kept in the run list but excluded from stats.
	require.Len(t, set.Runs, 2)
	group := set.Group(GroupKey{Destination: "a", Workflow: "wf"})
	require.NotNil(t, group)
	assert.Equal(t, 1, group.Count)
	assert.Equal(t, 2*time.Second, group.Durations.Max)
}

func TestFinalizeIncomplete(t *testing.T) {
	agg := NewAggregator(2)
	agg.Add(result(0, "a", RunSucceeded, time.Second))

	_, err := agg.Finalize(false)
	require.Error(t, err)
	var incomplete *benchmarkerrors.ErrIncomplete
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, 2, incomplete.Expected)
	assert.Equal(t, 1, incomplete.Completed)

	// Explicitly requesting a partial snapshot succeeds.
	set, err := agg.Finalize(true)
	require.NoError(t, err)
	assert.True(t, set.Partial)
	require.Len(t, set.Runs, 1)
}

func TestSnapshotWhileIncomplete(t *testing.T) {
	agg := NewAggregator(3)
	agg.Add(result(0, "a", RunSucceeded, time.Second))
	set := agg.Snapshot()
	assert.True(t, set.Partial)
	assert.Equal(t, 3, set.Expected)
	require.Len(t, set.Runs, 1)
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	const n = 100
	agg := NewAggregator(n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Add(result(i, fmt.Sprintf("dest-%d", i%4), RunSucceeded, time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	set, err := agg.Finalize(false)
	require.NoError(t, err)
	require.Len(t, set.Runs, n)
	require.Len(t, set.Groups, 4)
	total := 0
	for _, group := range set.Groups {
		total += group.Count
	}
	assert.Equal(t, n, total)
}
