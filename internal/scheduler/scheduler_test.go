package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/results"
)

// concurrencyTracker observes how many runs execute at once, per destination.
type concurrencyTracker struct {
	mu      sync.Mutex
	current map[string]int
	max     map[string]int
	total   int
}

func newConcurrencyTracker() *concurrencyTracker {
	return &concurrencyTracker{current: make(map[string]int), max: make(map[string]int)}
}

func (tr *concurrencyTracker) enter(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.current[name]++
	if tr.current[name] > tr.max[name] {
		tr.max[name] = tr.current[name]
	}
	inFlight := 0
	for _, n := range tr.current {
		inFlight += n
	}
	if inFlight > tr.total {
		tr.total = inFlight
	}
}

func (tr *concurrencyTracker) leave(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.current[name]--
}

type sink struct {
	mu      sync.Mutex
	results []*results.RunResult
}

func (s *sink) Add(result *results.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *sink) all() []*results.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*results.RunResult{}, s.results...)
}

func registryWith(t *testing.T, limits map[string]int) *destination.Registry {
	t.Helper()
	registry := destination.NewRegistry()
	for name, limit := range limits {
		require.NoError(t, registry.Register(destination.Destination{
			Name:              name,
			Url:               "http://" + name,
			MaxConcurrentRuns: limit,
			Timeout:           time.Minute,
		}))
	}
	return registry
}

func requestsFor(counts map[string]int) []*plan.RunRequest {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var requests []*plan.RunRequest
	for _, name := range names {
		count := counts[name]
		for i := 0; i < count; i++ {
			requests = append(requests, &plan.RunRequest{
				Index:       len(requests),
				Benchmark:   "bench",
				Workflow:    "wf",
				Destination: name,
				Repetition:  i,
			})
		}
	}
	for i, request := range requests {
		request.Index = i
	}
	return requests
}

func succeedAfter(delay time.Duration, tracker *concurrencyTracker) RunFunc {
	return func(ctx context.Context, request *plan.RunRequest, dest *destination.Destination) *results.RunResult {
		if tracker != nil {
			tracker.enter(dest.Name)
			defer tracker.leave(dest.Name)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &results.RunResult{
				Request:  request,
				State:    results.RunCancelled,
				Finished: time.Now(),
				Error:    "session cancelled",
			}
		}
		return &results.RunResult{
			Request:       request,
			State:         results.RunSucceeded,
			Finished:      time.Now(),
			TotalDuration: delay,
		}
	}
}

func TestAllRequestsGetExactlyOneResult(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 2, "b": 3})
	requests := requestsFor(map[string]int{"a": 10, "b": 10})
	resultSink := &sink{}

	New(registry, 0, succeedAfter(time.Millisecond, nil), resultSink).Run(context.Background(), requests)

	all := resultSink.all()
	require.Len(t, all, 20)
	seen := make(map[int]int)
	for _, result := range all {
		seen[result.Request.Index]++
	}
	for index, count := range seen {
		assert.Equal(t, 1, count, "request %d", index)
	}
}

func TestPerDestinationConcurrencyLimit(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 1, "b": 3})
	requests := requestsFor(map[string]int{"a": 6, "b": 6})
	tracker := newConcurrencyTracker()
	resultSink := &sink{}

	New(registry, 0, succeedAfter(5*time.Millisecond, tracker), resultSink).Run(context.Background(), requests)

	assert.LessOrEqual(t, tracker.max["a"], 1)
	assert.LessOrEqual(t, tracker.max["b"], 3)
	require.Len(t, resultSink.all(), 12)
}

func TestGlobalConcurrencyCap(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 4, "b": 4})
	requests := requestsFor(map[string]int{"a": 8, "b": 8})
	tracker := newConcurrencyTracker()
	resultSink := &sink{}

	New(registry, 3, succeedAfter(5*time.Millisecond, tracker), resultSink).Run(context.Background(), requests)

	assert.LessOrEqual(t, tracker.total, 3)
	require.Len(t, resultSink.all(), 16)
}

func TestDispatchOrderWithinDestination(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 1})
	requests := requestsFor(map[string]int{"a": 5})

	var mu sync.Mutex
	var dispatched []int
	run := func(ctx context.Context, request *plan.RunRequest, dest *destination.Destination) *results.RunResult {
		mu.Lock()
		dispatched = append(dispatched, request.Index)
		mu.Unlock()
		return &results.RunResult{Request: request, State: results.RunSucceeded, Finished: time.Now()}
	}
	resultSink := &sink{}
	New(registry, 0, run, resultSink).Run(context.Background(), requests)

	// With a single slot, dispatch order within the destination is plan order.
	assert.Equal(t, []int{0, 1, 2, 3, 4}, dispatched)
}

func TestSlowDestinationDoesNotStarveOthers(t *testing.T) {
	registry := registryWith(t, map[string]int{"slow": 1, "fast": 1})
	var requests []*plan.RunRequest
	for i := 0; i < 3; i++ {
		requests = append(requests, &plan.RunRequest{Index: len(requests), Destination: "slow", Workflow: "wf"})
	}
	for i := 0; i < 3; i++ {
		requests = append(requests, &plan.RunRequest{Index: len(requests), Destination: "fast", Workflow: "wf"})
	}

	var mu sync.Mutex
	finishTimes := make(map[string][]time.Time)
	run := func(ctx context.Context, request *plan.RunRequest, dest *destination.Destination) *results.RunResult {
		delay := time.Millisecond
		if dest.Name == "slow" {
			delay = 50 * time.Millisecond
		}
		time.Sleep(delay)
		mu.Lock()
		finishTimes[dest.Name] = append(finishTimes[dest.Name], time.Now())
		mu.Unlock()
		return &results.RunResult{Request: request, State: results.RunSucceeded, Finished: time.Now()}
	}
	resultSink := &sink{}
	start := time.Now()
	New(registry, 0, run, resultSink).Run(context.Background(), requests)

	// All fast runs finish well before the slow destination drains its queue.
	require.Len(t, finishTimes["fast"], 3)
	assert.Less(t, finishTimes["fast"][2].Sub(start), 50*time.Millisecond)
	require.Len(t, resultSink.all(), 6)
}

func TestCancellationAccountsForEveryRequest(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 1, "b": 2})
	requests := requestsFor(map[string]int{"a": 3, "b": 3})

	ctx, cancel := context.WithCancel(context.Background())
	resultSink := &sink{}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	New(registry, 0, succeedAfter(time.Hour, nil), resultSink).Run(ctx, requests)

	all := resultSink.all()
	require.Len(t, all, 6)
	cancelled := 0
	for _, result := range all {
		if result.State == results.RunCancelled {
			cancelled++
		}
	}
	assert.Equal(t, 6, cancelled)
}

func TestEmptyPlan(t *testing.T) {
	registry := registryWith(t, map[string]int{"a": 1})
	resultSink := &sink{}
	New(registry, 0, succeedAfter(time.Millisecond, nil), resultSink).Run(context.Background(), nil)
	assert.Empty(t, resultSink.all())
}

func TestManyDestinationsManyRuns(t *testing.T) {
	limits := make(map[string]int)
	counts := make(map[string]int)
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("dest-%d", i)
		limits[name] = i%3 + 1
		counts[name] = 7
	}
	registry := registryWith(t, limits)
	requests := requestsFor(counts)
	tracker := newConcurrencyTracker()
	resultSink := &sink{}

	New(registry, 4, succeedAfter(2*time.Millisecond, tracker), resultSink).Run(context.Background(), requests)

	require.Len(t, resultSink.all(), 35)
	assert.LessOrEqual(t, tracker.total, 4)
	for name, limit := range limits {
		assert.LessOrEqual(t, tracker.max[name], limit, name)
	}
}
