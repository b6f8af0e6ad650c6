// Package config loads simulation settings from defaults, an optional YAML
// file and CLEANER_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/boristopalov/cleaner/pkg/environment"
	"github.com/boristopalov/cleaner/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Output formats understood by the report package.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// SimulationConfig contains every setting of a cleaning run.
type SimulationConfig struct {
	// Rooms is the number of rooms in the row.
	Rooms int `json:"rooms" yaml:"rooms"`

	// Steps is the maximum number of simulation steps.
	Steps int `json:"steps" yaml:"steps"`

	// Seed makes the run reproducible. nil draws a random seed.
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// InitialDirtiness holds one level in [0,5] per room. nil generates
	// random initial dirt from the run's generator.
	InitialDirtiness []int `json:"initial_dirtiness,omitempty" yaml:"initial_dirtiness,omitempty"`

	// HistoryCapacity bounds the kept step history. Each record holds every
	// room level, so 0 (keep every step) costs steps x rooms memory.
	HistoryCapacity int `json:"history_capacity" yaml:"history_capacity"`

	// Output selects the result format: "text", "json" or "yaml".
	Output string `json:"output" yaml:"output"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures operational logging and the step trace.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" and "trace" also write every step to Dir/steps.jsonl.
	Level string `json:"level" yaml:"level"`

	// Dir is where the step trace is written.
	Dir string `json:"dir" yaml:"dir"`
}

// DefaultHistoryCapacity is the number of recent steps a run keeps.
const DefaultHistoryCapacity = 100

// Default returns a SimulationConfig with the stock settings.
func Default() *SimulationConfig {
	return &SimulationConfig{
		Rooms:           10,
		Steps:           100,
		HistoryCapacity: DefaultHistoryCapacity,
		Output:          OutputText,
		Logging: LoggingConfig{
			Level: "info",
			Dir:   ".cleaner",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty) and environment overrides.
func Load(path string) (*SimulationConfig, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*SimulationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration describes a runnable simulation.
// Every error wraps environment.ErrInvalidConfig.
func (c *SimulationConfig) Validate() error {
	if c.Rooms <= 0 {
		return fmt.Errorf("%w: Number of rooms must be positive", environment.ErrInvalidConfig)
	}

	if c.Steps <= 0 {
		return fmt.Errorf("%w: Number of steps must be positive", environment.ErrInvalidConfig)
	}

	if c.InitialDirtiness != nil {
		if len(c.InitialDirtiness) != c.Rooms {
			return fmt.Errorf("%w: Initial dirtiness list must have exactly %d values", environment.ErrInvalidConfig, c.Rooms)
		}
		for _, d := range c.InitialDirtiness {
			if d < 0 || d > environment.MaxDirtiness {
				return fmt.Errorf("%w: Dirtiness levels must be between 0 and %d", environment.ErrInvalidConfig, environment.MaxDirtiness)
			}
		}
	}

	if c.HistoryCapacity < 0 {
		return fmt.Errorf("%w: history_capacity must be non-negative, got %d", environment.ErrInvalidConfig, c.HistoryCapacity)
	}

	validOutputs := map[string]bool{OutputText: true, OutputJSON: true, OutputYAML: true}
	if !validOutputs[c.Output] {
		return fmt.Errorf("%w: invalid output format: %s (valid: text, json, yaml)", environment.ErrInvalidConfig, c.Output)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s (valid: info, debug, trace, or empty for default)", environment.ErrInvalidConfig, c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies CLEANER_* variables. Unlike free-form strings,
// a malformed number is reported rather than ignored.
func applyEnvOverrides(config *SimulationConfig) error {
	if v := os.Getenv("CLEANER_ROOMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing CLEANER_ROOMS: %w", err)
		}
		config.Rooms = n
	}

	if v := os.Getenv("CLEANER_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing CLEANER_STEPS: %w", err)
		}
		config.Steps = n
	}

	if v := os.Getenv("CLEANER_SEED"); v != "" {
		seed, err := ParseSeed(v)
		if err != nil {
			return fmt.Errorf("parsing CLEANER_SEED: %w", err)
		}
		config.Seed = &seed
	}

	if v := os.Getenv("CLEANER_OUTPUT"); v != "" {
		config.Output = strings.ToLower(v)
	}

	if v := os.Getenv("CLEANER_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv("CLEANER_LOG_DIR"); v != "" {
		config.Logging.Dir = v
	}

	return nil
}

// ParseSeed accepts any 64-bit integer, signed or not. Negative seeds keep
// their two's complement bits, so -1 and 18446744073709551615 name the same
// run.
func ParseSeed(s string) (uint64, error) {
	if seed, err := strconv.ParseUint(s, 10, 64); err == nil {
		return seed, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seed %q: %w", s, err)
	}
	return uint64(n), nil
}
