package destination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/benchmarkerrors"
)

func validDestination() Destination {
	return Destination{
		Name:              "local",
		Url:               "http://localhost:8080",
		MaxConcurrentRuns: 2,
		Timeout:           time.Minute,
	}
}

func TestRegisterAndResolve(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(validDestination()))

	d, err := registry.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, "local", d.Name)
	assert.Equal(t, 2, d.MaxConcurrentRuns)

	// Defaults are filled in for unset poll and retry settings.
	assert.Equal(t, DefaultPollInterval, d.PollInterval)
	assert.Equal(t, DefaultMaxPollFailures, d.MaxPollFailures)
	assert.Equal(t, uint(DefaultMaxAttempts), d.Retry.MaxAttempts)
	assert.Equal(t, DefaultBackoff, d.Retry.Backoff)
}

func TestRegisterValidation(t *testing.T) {
	tests := map[string]func(*Destination){
		"empty name":            func(d *Destination) { d.Name = "" },
		"zero concurrency":      func(d *Destination) { d.MaxConcurrentRuns = 0 },
		"negative concurrency":  func(d *Destination) { d.MaxConcurrentRuns = -1 },
		"zero timeout":          func(d *Destination) { d.Timeout = 0 },
		"negative timeout":      func(d *Destination) { d.Timeout = -time.Second },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			d := validDestination()
			modify(&d)
			err := NewRegistry().Register(d)
			require.Error(t, err)
			var invalid *benchmarkerrors.ErrInvalidArgument
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(validDestination()))

	err := registry.Register(validDestination())
	require.Error(t, err)
	var exists *benchmarkerrors.ErrAlreadyExists
	assert.ErrorAs(t, err, &exists)
}

func TestResolveUnknown(t *testing.T) {
	_, err := NewRegistry().Resolve("missing")
	require.Error(t, err)
	var notFound *benchmarkerrors.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestFreeze(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(validDestination()))
	registry.Freeze()

	other := validDestination()
	other.Name = "other"
	err := registry.Register(other)
	require.Error(t, err)

	// Existing registrations still resolve.
	_, err = registry.Resolve("local")
	assert.NoError(t, err)
}
