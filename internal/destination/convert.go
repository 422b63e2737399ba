package destination

import (
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
)

// FromConfig converts one destination config entry. All consumers of the
// config go through here so no field is dropped in one place only.
func FromConfig(dc configuration.DestinationConfig) Destination {
	return Destination{
		Name:              dc.Name,
		Url:               dc.Url,
		ApiKey:            dc.ApiKey,
		MaxConcurrentRuns: dc.MaxConcurrentRuns,
		Timeout:           dc.Timeout,
		PollInterval:      dc.PollInterval,
		MaxPollFailures:   dc.MaxPollFailures,
		Retry: RetryPolicy{
			MaxAttempts: dc.Retry.MaxAttempts,
			Backoff:     dc.Retry.Backoff,
		},
	}
}
