// Package scheduler dispatches run requests to run executors while holding
// per-destination concurrency limits and an optional global cap. Requests are
// dispatched in plan order within each destination; across destinations the
// scheduler round-robins so a slow destination cannot starve the others.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/metrics"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/results"
)

// RunFunc executes one run request to a terminal result. The scheduler
// guarantees at most destination.MaxConcurrentRuns concurrent invocations
// per destination.
type RunFunc func(ctx context.Context, request *plan.RunRequest, dest *destination.Destination) *results.RunResult

// ResultSink receives every terminal run result exactly once.
type ResultSink interface {
	Add(result *results.RunResult)
}

// Scheduler owns the worker pool for one benchmark session.
type Scheduler struct {
	registry    *destination.Registry
	globalLimit int
	run         RunFunc
	sink        ResultSink
}

func New(registry *destination.Registry, globalLimit int, run RunFunc, sink ResultSink) *Scheduler {
	return &Scheduler{
		registry:    registry,
		globalLimit: globalLimit,
		run:         run,
		sink:        sink,
	}
}

// Run dispatches all requests and blocks until every one of them has a
// terminal result recorded in the sink. When ctx is cancelled, in-flight runs
// are cancelled through their context and requests that were never dispatched
// are recorded as cancelled, so the sink still accounts for every request.
func (s *Scheduler) Run(ctx context.Context, requests []*plan.RunRequest) {
	// Per-destination FIFO queues, in plan order. Destination order for the
	// round-robin is first appearance in the plan, which is deterministic.
	queues := make(map[string][]*plan.RunRequest)
	var order []string
	for _, request := range requests {
		if _, ok := queues[request.Destination]; !ok {
			order = append(order, request.Destination)
		}
		queues[request.Destination] = append(queues[request.Destination], request)
	}

	slots := make(map[string]int, len(order))
	dests := make(map[string]*destination.Destination, len(order))
	remaining := len(requests)
	for _, name := range order {
		dest, err := s.registry.Resolve(name)
		if err != nil {
			// Expansion resolves every destination, so this only happens for
			// hand-built plans. Fail the queued requests rather than hang.
			log.WithError(err).Errorf("destination %q is not registered", name)
			for _, request := range queues[name] {
				s.sink.Add(&results.RunResult{
					Request:  request,
					State:    results.RunFailed,
					Finished: time.Now(),
					Error:    err.Error(),
				})
				remaining--
			}
			queues[name] = nil
			continue
		}
		dests[name] = dest
		slots[name] = dest.MaxConcurrentRuns
	}

	globalFree := s.globalLimit
	inFlight := 0
	done := make(chan string)
	next := 0 // round-robin cursor into order
	var wg sync.WaitGroup

	for remaining > 0 || inFlight > 0 {
		if ctx.Err() != nil && remaining > 0 {
			remaining -= s.drain(queues, order)
		}

		// Dispatch one request per destination per pass until no destination
		// can accept more work.
		for ctx.Err() == nil {
			dispatched := false
			for i := 0; i < len(order); i++ {
				name := order[(next+i)%len(order)]
				queue := queues[name]
				if len(queue) == 0 || slots[name] == 0 {
					continue
				}
				if s.globalLimit > 0 && globalFree == 0 {
					break
				}
				request := queue[0]
				queues[name] = queue[1:]
				slots[name]--
				if s.globalLimit > 0 {
					globalFree--
				}
				inFlight++
				remaining--
				dispatched = true
				s.dispatch(ctx, &wg, request, dests[name], done)
			}
			if len(order) > 0 {
				next = (next + 1) % len(order)
			}
			if !dispatched {
				break
			}
		}

		if inFlight == 0 {
			if remaining == 0 {
				break
			}
			continue
		}

		select {
		case name := <-done:
			slots[name]++
			if s.globalLimit > 0 {
				globalFree++
			}
			inFlight--
		case <-ctx.Done():
			// Loop around to drain the queues; in-flight runs observe the
			// cancellation through their own context.
			name := <-done
			slots[name]++
			if s.globalLimit > 0 {
				globalFree++
			}
			inFlight--
		}
	}
	wg.Wait()
}

func (s *Scheduler) dispatch(ctx context.Context, wg *sync.WaitGroup, request *plan.RunRequest, dest *destination.Destination, done chan<- string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		metrics.RecordRunStarted(dest.Name)
		result := s.run(ctx, request, dest)
		metrics.RecordRunFinished(dest.Name, string(result.State))
		if result.State.Succeeded() {
			metrics.RecordRunDuration(dest.Name, request.Workflow, result.TotalDuration)
		}
		s.sink.Add(result)
		done <- dest.Name
	}()
}

// drain records a cancelled result for every request still queued.
func (s *Scheduler) drain(queues map[string][]*plan.RunRequest, order []string) int {
	drained := 0
	now := time.Now()
	for _, name := range order {
		for _, request := range queues[name] {
			s.sink.Add(&results.RunResult{
				Request:  request,
				State:    results.RunCancelled,
				Finished: now,
				Error:    "session cancelled before dispatch",
			})
			drained++
		}
		queues[name] = nil
	}
	return drained
}
