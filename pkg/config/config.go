package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the ce-driver configuration.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Target    TargetConfig    `yaml:"target"`
	Execution ExecutionConfig `yaml:"execution"`
	Sync      SyncConfig      `yaml:"sync"`
	Emergency EmergencyConfig `yaml:"emergency"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FrameworkConfig contains general ambient settings.
type FrameworkConfig struct {
	Version   string `yaml:"version"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// TargetConfig describes the command template under test (spec.md §3, §6).
type TargetConfig struct {
	// InputDir is the seeds directory, or "-" to resume from an existing
	// output root.
	InputDir string `yaml:"input_dir"`
	// OutputDir is the output root (queue/hangs/crashes/tmp live under it).
	OutputDir string `yaml:"output_dir"`
	// TrackTarget is the path to the tracking-mode binary (-t). Required.
	TrackTarget string `yaml:"track_target"`
	// MemLimitMB is the fast-run memory cap in MiB; 0 = unlimited.
	MemLimitMB uint64 `yaml:"mem_limit_mb"`
	// TimeLimitSec is the fast-run time limit in seconds.
	TimeLimitSec uint64 `yaml:"time_limit_sec"`
}

// ExecutionConfig contains driver-loop tuning knobs.
type ExecutionConfig struct {
	// Jobs is the reserved thread-job count (-j). Unused by the current
	// single-executor loop; carried for forward compatibility.
	Jobs int `yaml:"jobs"`
	// FlipStrategy selects the solver's branch-negation order (-b).
	FlipStrategy uint32 `yaml:"flip_strategy"`
	// InitialCorpusCount seeds the solver's initial_count at startup (-c).
	InitialCorpusCount uint32 `yaml:"initial_corpus_count"`
	// RoundBudget is loaded and saved but not read by the fuzz loop,
	// which bounds each round with the fixed fuzzloop.RoundBudget.
	RoundBudget time.Duration `yaml:"round_budget"`
}

// SyncConfig controls multi-source depot intake (spec.md §4.3).
type SyncConfig struct {
	// SyncWithAFL records the -S flag. It is logged only: sibling-
	// directory intake runs every round whether or not it is set.
	SyncWithAFL bool `yaml:"sync_with_afl"`
	// FifoMode selects the 2-directory fifo sync instead of 3-directory
	// tier sync (-f).
	FifoMode bool `yaml:"fifo_mode"`
}

// EmergencyConfig contains cancellation settings, adapted from the
// teacher's broader emergency-stop design.
type EmergencyConfig struct {
	StopFile       string `yaml:"stop_file"`
	EnableStopFile bool   `yaml:"enable_stop_file"`
}

// MetricsConfig controls the optional internal metrics exporter.
type MetricsConfig struct {
	// Addr is the listen address for the /metrics endpoint, e.g.
	// "127.0.0.1:9100". Empty disables the exporter.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a default configuration matching spec.md §6's
// stated flag defaults.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			Version:   "v1",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Target: TargetConfig{
			InputDir:     "in",
			OutputDir:    "out",
			MemLimitMB:   200,
			TimeLimitSec: 1,
		},
		Execution: ExecutionConfig{
			Jobs:         1,
			FlipStrategy: 0,
			RoundBudget:  30 * time.Second,
		},
		Sync: SyncConfig{
			SyncWithAFL: false,
			FifoMode:    false,
		},
		Emergency: EmergencyConfig{
			StopFile:       "/tmp/ce-driver-emergency-stop",
			EnableStopFile: false,
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file is absent, and applying a small set of env-var
// overrides on top of whatever was loaded.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "ce-driver.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(expandedData, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("CE_DRIVER_OUTPUT_DIR"); v != "" {
		cfg.Target.OutputDir = v
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration against spec.md §6's required
// surface (track target is mandatory; everything else has a default).
func (c *Config) Validate() error {
	if c.Target.TrackTarget == "" {
		return fmt.Errorf("target.track_target is required (-t)")
	}

	if c.Target.OutputDir == "" {
		return fmt.Errorf("target.output_dir is required (-o)")
	}

	if c.Target.InputDir == "" {
		return fmt.Errorf("target.input_dir is required (-i, or \"-\" to resume)")
	}

	if c.Execution.Jobs < 1 {
		return fmt.Errorf("execution.jobs must be at least 1")
	}

	return nil
}
