// Package report serializes finished result sets for storage and renders a
// human-readable summary of the per-group statistics.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/results"
)

type Format string

const (
	FormatJson Format = "json"
	FormatYaml Format = "yaml"
)

// Marshal renders the result set in the requested format. The YAML rendering
// goes through the JSON representation so both formats use the same field
// names.
func Marshal(set *results.ResultSet, format Format) ([]byte, error) {
	switch format {
	case FormatJson:
		out, err := json.MarshalIndent(set, "", "  ")
		return out, errors.WithStack(err)
	case FormatYaml:
		raw, err := json.Marshal(set)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.WithStack(err)
		}
		out, err := yaml.Marshal(doc)
		return out, errors.WithStack(err)
	default:
		return nil, errors.WithStack(&benchmarkerrors.ErrInvalidArgument{
			Name:    "format",
			Value:   string(format),
			Message: "must be json or yaml",
		})
	}
}

// Write renders the result set to w.
func Write(w io.Writer, set *results.ResultSet, format Format) error {
	out, err := Marshal(set, format)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return errors.WithStack(err)
}

// WriteFile stores the result set under dir with a timestamped file name and
// returns the path written. The directory is created if needed.
func WriteFile(dir, name string, set *results.ResultSet, format Format) (string, error) {
	out, err := Marshal(set, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().Format("2006-01-02_15-04-05"), format)
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return path, nil
}

// Unmarshal reads a result set back from its JSON rendering.
func Unmarshal(data []byte) (*results.ResultSet, error) {
	var set results.ResultSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.WithStack(err)
	}
	return &set, nil
}

// Summarize writes a plain-text summary of the group statistics, one block
// per group. The first write error stops the output.
func Summarize(w io.Writer, set *results.ResultSet) error {
	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if set.Partial {
		printf("PARTIAL RESULTS: %d/%d runs completed\n\n", len(set.Runs), set.Expected)
	}
	for _, group := range set.Groups {
		header := fmt.Sprintf("%s / %s", group.Key.Destination, group.Key.Workflow)
		if group.Key.ParamSignature != "" {
			header += " [" + group.Key.ParamSignature + "]"
		}
		printf("%s\n", header)
		printf("  runs: %d  succeeded: %d  failed: %d  timed out: %d  cancelled: %d\n",
			group.Count, group.Succeeded, group.Failed, group.TimedOut, group.Cancelled)
		if group.MetricsMissing > 0 {
			printf("  succeeded without metrics: %d\n", group.MetricsMissing)
		}
		printf("  failure rate: %.2f\n", group.FailureRate)
		if stats := group.Durations; stats != nil {
			printf("  duration: min %v  mean %v  max %v  stddev %v\n",
				stats.Min, stats.Mean, stats.Max, stats.StandardDeviation)
			printf("  percentiles: p50 %v  p90 %v  p95 %v  p99 %v\n",
				stats.P50, stats.P90, stats.P95, stats.P99)
		}
		printf("\n")
	}
	return errors.WithStack(err)
}
