package destination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
)

func TestFromConfigCarriesEveryField(t *testing.T) {
	dc := configuration.DestinationConfig{
		Name:              "cluster-a",
		Url:               "https://galaxy-a.example.org",
		ApiKey:            "secret",
		MaxConcurrentRuns: 4,
		Timeout:           30 * time.Minute,
		PollInterval:      5 * time.Second,
		MaxPollFailures:   7,
		Retry: configuration.RetryConfig{
			MaxAttempts: 5,
			Backoff:     2 * time.Second,
		},
	}

	d := FromConfig(dc)

	assert.Equal(t, Destination{
		Name:              "cluster-a",
		Url:               "https://galaxy-a.example.org",
		ApiKey:            "secret",
		MaxConcurrentRuns: 4,
		Timeout:           30 * time.Minute,
		PollInterval:      5 * time.Second,
		MaxPollFailures:   7,
		Retry: RetryPolicy{
			MaxAttempts: 5,
			Backoff:     2 * time.Second,
		},
	}, d)
}
