package benchmarker

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/results"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/runner"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/scheduler"
	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend"
	"github.com/usegalaxy-eu/galaxy-benchmarker/pkg/backend/galaxy"
)

// ClientFactory builds the backend client used for all runs against one
// destination. Overridable so tests can substitute a fake backend.
type ClientFactory func(dest *destination.Destination) backend.Client

// App is the top-level entry point for running benchmark sessions.
type App struct {
	// Destination where benchmark progress is logged; defaults to stdout.
	Out io.Writer
	// Factory for per-destination backend clients.
	Clients ClientFactory
}

func New() *App {
	return &App{
		Out:     os.Stdout,
		Clients: galaxyClient,
	}
}

func galaxyClient(dest *destination.Destination) backend.Client {
	return galaxy.New(dest.Name, dest.Url, dest.ApiKey, 0)
}

// Session is one in-flight execution of a benchmark configuration.
// A session owns its expanded run plan; configuration changes after Start
// have no effect on it.
type Session struct {
	Id string

	aggregator *results.Aggregator
	cancel     context.CancelFunc
	done       chan struct{}

	mu        sync.Mutex
	cancelled bool

	log *log.Entry
}

// Start validates the configuration, expands the run plan and begins
// dispatching runs in the background. It returns as soon as the session is
// underway; use Wait to collect the final result set.
func (a *App) Start(ctx context.Context, config *configuration.BenchmarkConfig) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	registry := destination.NewRegistry()
	for _, dc := range config.Destinations {
		if err := registry.Register(destination.FromConfig(dc)); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	requests, err := plan.Expand(config, registry)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]backend.Client)
	for _, name := range registry.Names() {
		dest, err := registry.Resolve(name)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		clients[name] = a.Clients(dest)
	}

	if err := checkDestinations(ctx, clients); err != nil {
		return nil, err
	}

	session := &Session{
		Id:         uuid.New().String(),
		aggregator: results.NewAggregator(len(requests)),
		done:       make(chan struct{}),
	}
	session.log = log.WithField("session", session.Id)

	run := func(ctx context.Context, request *plan.RunRequest, dest *destination.Destination) *results.RunResult {
		return runner.New(request, dest, clients[dest.Name]).Run(ctx)
	}
	sched := scheduler.New(registry, config.GlobalMaxConcurrentRuns, run, session.aggregator)

	sessionCtx, cancel := context.WithCancel(ctx)
	session.cancel = cancel

	session.log.Infof("starting benchmark session: %d runs across %d destinations", len(requests), len(clients))
	go func() {
		defer cancel()
		sched.Run(sessionCtx, requests)
		if sessionCtx.Err() != nil {
			session.mu.Lock()
			session.cancelled = true
			session.mu.Unlock()
		}
		close(session.done)
	}()
	return session, nil
}

// Cancel stops the session. In-flight runs are interrupted and recorded as
// cancelled; queued runs are never dispatched. Idempotent.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.cancel()
}

// Snapshot returns the results collected so far. Safe to call while runs are
// still in flight.
func (s *Session) Snapshot() *results.ResultSet {
	return s.aggregator.Snapshot()
}

// Completed returns how many runs have reached a terminal state.
func (s *Session) Completed() int {
	return s.aggregator.Completed()
}

// Wait blocks until the session finishes and returns the final result set.
// If ctx expires first the session is cancelled and Wait returns the partial
// result set once every dispatched run has wound down.
func (s *Session) Wait(ctx context.Context) (*results.ResultSet, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.Cancel()
		<-s.done
	}

	s.mu.Lock()
	partial := s.cancelled
	s.mu.Unlock()

	set, err := s.aggregator.Finalize(partial)
	if err != nil {
		return set, err
	}
	s.log.Infof("session finished: %d/%d runs completed", len(set.Runs), set.Expected)
	return set, nil
}

// checkDestinations health-checks every destination whose client supports it,
// in parallel. One unreachable destination fails the whole session before any
// run is dispatched.
func checkDestinations(ctx context.Context, clients map[string]backend.Client) error {
	g, ctx := errgroup.WithContext(ctx)
	for name, client := range clients {
		checker, ok := client.(backend.HealthChecker)
		if !ok {
			continue
		}
		name := name
		g.Go(func() error {
			if err := checker.Health(ctx); err != nil {
				log.WithError(err).Errorf("destination %s failed its health check", name)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

