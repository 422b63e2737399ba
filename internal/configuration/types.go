// Package configuration defines the input configuration for a benchmark
// session: the destinations to benchmark against and the benchmarks to run
// on them. Config files are YAML or JSON and are bound with viper, so
// durations may be given as strings such as "10m" or "1h30m".
//
// Example YAML configuration:
//
//	globalMaxConcurrentRuns: 8
//	destinations:
//	  - name: cluster-a
//	    url: https://galaxy-a.example.org
//	    apiKey: secret-a
//	    maxConcurrentRuns: 2
//	    timeout: 30m
//	    pollInterval: 5s
//	    retry:
//	      maxAttempts: 3
//	      backoff: 1s
//	benchmarks:
//	  - name: rnaseq-scaling
//	    workflow: wf-rnaseq
//	    destinations: [cluster-a]
//	    repetitions: 3
//	    warmupRuns: 1
//	    parameters:
//	      reference: hg38
//	    sweep:
//	      readCount: ["1M", "10M"]
//	    tags:
//	      experiment: scaling
package configuration

import "time"

// BenchmarkConfig is the root configuration for one benchmark session.
type BenchmarkConfig struct {
	// Optional cap on in-flight runs across all destinations. 0 means no cap.
	GlobalMaxConcurrentRuns int                 `mapstructure:"globalMaxConcurrentRuns"`
	Destinations            []DestinationConfig `mapstructure:"destinations"`
	Benchmarks              []BenchmarkSpec     `mapstructure:"benchmarks"`
}

// DestinationConfig describes one execution backend.
type DestinationConfig struct {
	Name              string        `mapstructure:"name"`
	Url               string        `mapstructure:"url"`
	ApiKey            string        `mapstructure:"apiKey"`
	MaxConcurrentRuns int           `mapstructure:"maxConcurrentRuns"`
	Timeout           time.Duration `mapstructure:"timeout"`
	PollInterval      time.Duration `mapstructure:"pollInterval"`
	MaxPollFailures   int           `mapstructure:"maxPollFailures"`
	Retry             RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds submission retries per run.
type RetryConfig struct {
	MaxAttempts uint          `mapstructure:"maxAttempts"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// BenchmarkSpec describes one benchmark: a workflow executed on a set of
// destinations, a fixed number of repetitions per parameter combination,
// and an optional parameter sweep.
type BenchmarkSpec struct {
	Name         string   `mapstructure:"name"`
	Workflow     string   `mapstructure:"workflow"`
	Destinations []string `mapstructure:"destinations"`
	Repetitions  int      `mapstructure:"repetitions"`
	// Runs executed before the measured repetitions on each destination.
	// Their results are recorded but excluded from summary statistics.
	WarmupRuns int `mapstructure:"warmupRuns"`
	// Optional per-run timeout override. Zero means the destination default.
	Timeout time.Duration `mapstructure:"timeout"`
	// Parameters applied to every run.
	Parameters map[string]string `mapstructure:"parameters"`
	// Sweep maps a parameter name to the list of values to benchmark.
	// The cross product over all sweep keys is expanded; each combination is
	// merged over Parameters.
	Sweep map[string][]string `mapstructure:"sweep"`
	// Free-form tags carried into the final report.
	Tags map[string]string `mapstructure:"tags"`
}
