package configuration

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Load reads and validates a benchmark configuration file. The file format is
// inferred from the extension (yaml, yml or json).
func Load(path string) (*BenchmarkConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "reading config file %s", path)
	}
	config := &BenchmarkConfig{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WithMessagef(err, "unmarshalling config file %s", path)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "invalid config file %s", path)
	}
	return config, nil
}
