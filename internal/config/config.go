// Package config loads the daemon configuration from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Duration is a time.Duration that unmarshals from YAML strings like "5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns the standard library representation.
func (d Duration) AsDuration() time.Duration { return time.Duration(d) }

// Config is the sessiond daemon configuration.
type Config struct {
	// ListenAddr serves the health and metrics endpoints.
	ListenAddr string `yaml:"listen_addr" validate:"required,hostname_port"`

	// IdleTimeout ends sessions with no reported usage for this long.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// DrainTimeout bounds the final-usage drain during session termination.
	DrainTimeout Duration `yaml:"drain_timeout"`

	// SetupRetryInterval is the fixed delay between dataplane setup retries.
	SetupRetryInterval Duration `yaml:"setup_retry_interval"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		ListenAddr:         "localhost:9110",
		IdleTimeout:        Duration(time.Hour),
		DrainTimeout:       Duration(5 * time.Second),
		SetupRetryInterval: Duration(time.Second),
	}
}

// Load reads and validates a YAML config file. Fields absent from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, d := range map[string]Duration{
		"idle_timeout":         c.IdleTimeout,
		"drain_timeout":        c.DrainTimeout,
		"setup_retry_interval": c.SetupRetryInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive", name)
		}
	}
	return nil
}
