// Package engconfig holds the tunable parameters of a verification
// campaign: epoch sizing, decay factors, timeout budgets, and the paths the
// engine reads its specification and cross-campaign memory from. Config is
// YAML-loadable with sensible defaults so a campaign can run with zero
// configuration.
package engconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root engine configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Spec     SpecConfig     `yaml:"spec"`
	Adapt    AdaptConfig    `yaml:"adapt"`
	Solver   SolverConfig   `yaml:"solver"`
	Memory   MemoryConfig   `yaml:"memory"`
	Executor ExecutorConfig `yaml:"executor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SpecConfig locates the protocol/model specification to compile.
type SpecConfig struct {
	EntitiesPath  string `yaml:"entities_path"`
	ProtocolsPath string `yaml:"protocols_path"`
}

// AdaptConfig mirrors the original CoordinatorConfig defaults.
type AdaptConfig struct {
	EpochSize          int     `yaml:"epoch_size"`
	GlobalDecay        float64 `yaml:"global_decay"`
	MinWeight          float64 `yaml:"min_weight"`
	CoverageFloor      float64 `yaml:"coverage_floor"`
	TimeoutRetryBudget int     `yaml:"timeout_retry_budget"`
	TimeoutSkipBudget  int     `yaml:"timeout_skip_budget"`
}

// SolverConfig bounds the SAT solving pipeline.
type SolverConfig struct {
	MaxDomainSize   int    `yaml:"max_domain_size"`
	FractureThreads int    `yaml:"fracture_threads"`
	FindManyLimit   int    `yaml:"find_many_limit"`
	RNGSeed         uint64 `yaml:"rng_seed"`
}

// MemoryConfig locates the cross-campaign memory store.
type MemoryConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ExecutorConfig selects and sandboxes the action executor.
type ExecutorConfig struct {
	Kind             string   `yaml:"kind"` // "model-only" or "script"
	ScriptPath       string   `yaml:"script_path"`
	AllowedPackages  []string `yaml:"allowed_packages"`
	TimeoutPerAction string   `yaml:"timeout_per_action"`
}

// LoggingConfig controls the engine's zap-backed logger.
type LoggingConfig struct {
	Verbose    bool `yaml:"verbose"`
	JSONFormat bool `yaml:"json_format"`
}

// Default returns the engine's built-in defaults, matching the original
// implementation's coordinator/decay/timeout constants.
func Default() *Config {
	return &Config{
		Name:    "verityengine",
		Version: "0.1.0",
		Spec: SpecConfig{
			EntitiesPath:  "spec/entities.json",
			ProtocolsPath: "spec/protocols.json",
		},
		Adapt: AdaptConfig{
			EpochSize:          50,
			GlobalDecay:        0.95,
			MinWeight:          0.1,
			CoverageFloor:      0.05,
			TimeoutRetryBudget: 1,
			TimeoutSkipBudget:  50,
		},
		Solver: SolverConfig{
			MaxDomainSize:   1024,
			FractureThreads: 4,
			FindManyLimit:   16,
			RNGSeed:         0,
		},
		Memory: MemoryConfig{
			DatabasePath: ".verity/memory.db",
		},
		Executor: ExecutorConfig{
			Kind:             "model-only",
			AllowedPackages:  []string{"strings", "strconv", "fmt", "math", "regexp", "encoding/json", "time", "sort", "bytes"},
			TimeoutPerAction: "10s",
		},
		Logging: LoggingConfig{
			Verbose:    false,
			JSONFormat: true,
		},
	}
}

// Load reads and parses a YAML config file, filling unset fields from
// Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ExecutorTimeout parses ExecutorConfig.TimeoutPerAction, defaulting to 10s
// on an empty or invalid value.
func (c ExecutorConfig) ExecutorTimeout() time.Duration {
	if c.TimeoutPerAction == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.TimeoutPerAction)
	if err != nil {
		return 10 * time.Second
	}
	return d
}
