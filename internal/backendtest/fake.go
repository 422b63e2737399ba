// Package backendtest provides an in-memory backend.Client for tests.
// The default client accepts every submission and reports it succeeded on
// the first poll; behaviour is overridden per capability via the *Func fields.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend"
)

// FakeClient implements backend.Client. Safe for concurrent use.
type FakeClient struct {
	Name string

	SubmitFunc func(ctx context.Context, workflow string, params map[string]string) (backend.JobHandle, error)
	PollFunc   func(ctx context.Context, handle backend.JobHandle) (backend.Status, error)
	FetchFunc  func(ctx context.Context, handle backend.JobHandle) (*backend.Metrics, error)
	CancelFunc func(ctx context.Context, handle backend.JobHandle) error

	mu          sync.Mutex
	submits     int
	polls       int
	fetches     int
	cancels     int
	inFlight    int
	maxInFlight int
	started     map[string]bool
	terminal    map[string]bool
}

func New(name string) *FakeClient {
	return &FakeClient{Name: name, started: make(map[string]bool), terminal: make(map[string]bool)}
}

func (c *FakeClient) Submit(ctx context.Context, workflow string, params map[string]string) (backend.JobHandle, error) {
	c.mu.Lock()
	c.submits++
	id := fmt.Sprintf("%s-job-%d", c.Name, c.submits)
	c.mu.Unlock()

	if c.SubmitFunc != nil {
		handle, err := c.SubmitFunc(ctx, workflow, params)
		if err != nil {
			return handle, err
		}
		c.trackStarted(handle.Id)
		return handle, nil
	}
	c.trackStarted(id)
	return backend.JobHandle{Id: id, Destination: c.Name}, nil
}

func (c *FakeClient) Poll(ctx context.Context, handle backend.JobHandle) (backend.Status, error) {
	c.mu.Lock()
	c.polls++
	c.mu.Unlock()

	status := backend.Status{State: backend.StateSucceeded}
	var err error
	if c.PollFunc != nil {
		status, err = c.PollFunc(ctx, handle)
	}
	if err == nil && status.State.Terminal() {
		c.trackFinished(handle.Id)
	}
	return status, err
}

func (c *FakeClient) Fetch(ctx context.Context, handle backend.JobHandle) (*backend.Metrics, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()

	if c.FetchFunc != nil {
		return c.FetchFunc(ctx, handle)
	}
	return &backend.Metrics{}, nil
}

func (c *FakeClient) Cancel(ctx context.Context, handle backend.JobHandle) error {
	c.mu.Lock()
	c.cancels++
	c.mu.Unlock()
	c.trackFinished(handle.Id)

	if c.CancelFunc != nil {
		return c.CancelFunc(ctx, handle)
	}
	return nil
}

func (c *FakeClient) Submits() int { c.mu.Lock(); defer c.mu.Unlock(); return c.submits }
func (c *FakeClient) Polls() int   { c.mu.Lock(); defer c.mu.Unlock(); return c.polls }
func (c *FakeClient) Fetches() int { c.mu.Lock(); defer c.mu.Unlock(); return c.fetches }
func (c *FakeClient) Cancels() int { c.mu.Lock(); defer c.mu.Unlock(); return c.cancels }

// MaxInFlight returns the highest number of jobs that were simultaneously
// submitted but not yet terminal. Used to observe concurrency ceilings.
func (c *FakeClient) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

func (c *FakeClient) trackStarted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started[id] = true
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}
}

func (c *FakeClient) trackFinished(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started[id] || c.terminal[id] {
		return
	}
	c.terminal[id] = true
	c.inFlight--
}
