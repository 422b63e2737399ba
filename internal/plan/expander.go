// Package plan expands a benchmark configuration into the concrete, ordered
// sequence of run requests a session will execute. Expansion is deterministic:
// the same configuration always yields the same sequence, which keeps
// benchmark sessions reproducible and their result sets diff-able.
package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
)

// RunRequest is one concrete run: a workflow with a fixed parameter set,
// executed once on one destination. Immutable; consumed exactly once by a
// run executor.
type RunRequest struct {
	// Position in the expanded plan. Unique and dense, starting at 0.
	Index       int               `json:"index"`
	Benchmark   string            `json:"benchmark"`
	Workflow    string            `json:"workflow"`
	Destination string            `json:"destination"`
	Params      map[string]string `json:"params,omitempty"`
	// Canonical representation of Params, used as a grouping key.
	ParamSignature string `json:"paramSignature,omitempty"`
	// Repetition number within (benchmark, params, destination), starting at 0.
	Repetition int `json:"repetition"`
	// Warmup runs are executed and recorded but excluded from summary statistics.
	Warmup bool `json:"warmup,omitempty"`
	// Per-run timeout override. Zero means the destination's default applies.
	Timeout time.Duration     `json:"timeout,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
}

// Expand turns a validated benchmark configuration into the ordered run
// sequence. Referencing an unregistered destination or an empty parameter
// sweep fails the expansion; nothing is dispatched on error.
func Expand(config *configuration.BenchmarkConfig, registry *destination.Registry) ([]*RunRequest, error) {
	var requests []*RunRequest
	for _, benchmark := range config.Benchmarks {
		for _, name := range benchmark.Destinations {
			if _, err := registry.Resolve(name); err != nil {
				return nil, errors.WithMessagef(err, "benchmark %q", benchmark.Name)
			}
		}
		paramSets, err := expandSweep(&benchmark)
		if err != nil {
			return nil, errors.WithMessagef(err, "benchmark %q", benchmark.Name)
		}
		for _, params := range paramSets {
			signature := Signature(params)
			for _, destinationName := range benchmark.Destinations {
				for warmup := 0; warmup < benchmark.WarmupRuns; warmup++ {
					requests = append(requests, &RunRequest{
						Index:          len(requests),
						Benchmark:      benchmark.Name,
						Workflow:       benchmark.Workflow,
						Destination:    destinationName,
						Params:         params,
						ParamSignature: signature,
						Repetition:     warmup,
						Warmup:         true,
						Timeout:        benchmark.Timeout,
						Tags:           benchmark.Tags,
					})
				}
				for repetition := 0; repetition < benchmark.Repetitions; repetition++ {
					requests = append(requests, &RunRequest{
						Index:          len(requests),
						Benchmark:      benchmark.Name,
						Workflow:       benchmark.Workflow,
						Destination:    destinationName,
						Params:         params,
						ParamSignature: signature,
						Repetition:     repetition,
						Timeout:        benchmark.Timeout,
						Tags:           benchmark.Tags,
					})
				}
			}
		}
	}
	return requests, nil
}

// expandSweep returns the cross product of the benchmark's sweep values,
// each combination merged over the fixed parameters. Sweep keys are iterated
// in sorted order so the expansion order is stable.
func expandSweep(benchmark *configuration.BenchmarkSpec) ([]map[string]string, error) {
	if len(benchmark.Sweep) == 0 {
		return []map[string]string{copyParams(benchmark.Parameters)}, nil
	}

	keys := make([]string, 0, len(benchmark.Sweep))
	for key := range benchmark.Sweep {
		if len(benchmark.Sweep[key]) == 0 {
			return nil, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
				Name:    "sweep",
				Value:   key,
				Message: "parameter sweep is empty",
			})
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	paramSets := []map[string]string{copyParams(benchmark.Parameters)}
	for _, key := range keys {
		var next []map[string]string
		for _, base := range paramSets {
			for _, value := range benchmark.Sweep[key] {
				params := copyParams(base)
				params[key] = value
				next = append(next, params)
			}
		}
		paramSets = next
	}
	return paramSets, nil
}

// Signature returns the canonical string form of a parameter set:
// sorted key=value pairs joined with commas.
func Signature(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, params[key]))
	}
	return strings.Join(pairs, ",")
}

func copyParams(params map[string]string) map[string]string {
	copied := make(map[string]string, len(params))
	for key, value := range params {
		copied[key] = value
	}
	return copied
}
