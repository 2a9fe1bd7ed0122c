//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the user-tunable options of an inference run and loads them from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects the instantiation strategy of the program points.
type Mode string

const (
	// ModeOptimized instantiates slices over equality-set leaders only and defers constants.
	ModeOptimized Mode = "optimized"
	// ModeSimple instantiates every slice over every variable on the first sample.
	ModeSimple Mode = "simple"
)

// Config holds the options of one run. The zero value is not usable, start from Default.
type Config struct {
	// Mode selects optimized or simple instantiation.
	Mode Mode `yaml:"mode"`
	// DynamicConstants enables deferring invariants over variables that have only shown a single
	// value so far.
	DynamicConstants bool `yaml:"dynamic_constants"`
	// IgnoreComparability treats every pair of variables as comparable.
	IgnoreComparability bool `yaml:"ignore_comparability"`
	// InternSamples deduplicates identical value tuples.
	InternSamples bool `yaml:"intern_samples"`
	// Workers is the number of program-point families processed concurrently.
	Workers int `yaml:"workers"`

	Equality    EqualityConfig    `yaml:"equality"`
	PostProcess PostProcessConfig `yaml:"post_process"`
	Hierarchy   HierarchyConfig   `yaml:"hierarchy"`
	Invariants  InvariantsConfig  `yaml:"invariants"`
	Log         LogConfig         `yaml:"log"`
}

// EqualityConfig controls the equality optimization.
type EqualityConfig struct {
	// SetPerVar puts every variable in its own equality set, which turns the optimization off.
	SetPerVar bool `yaml:"set_per_var"`
}

// PostProcessConfig controls what happens to variables that are still constant at the end of
// the run.
type PostProcessConfig struct {
	// OneOfOnly creates only a OneOf invariant and a reflexive equality per remaining constant.
	OneOfOnly bool `yaml:"one_of_only"`
	// Skip leaves remaining constants as bare constant facts.
	Skip bool `yaml:"skip"`
}

// HierarchyConfig controls the program-point relation graph.
type HierarchyConfig struct {
	// EnableObjectUser builds USER relations from object points to the points that use a
	// variable of that object type.
	EnableObjectUser bool `yaml:"enable_object_user"`
	// MergeEqualities pushes child equalities up to parents without samples of their own.
	MergeEqualities bool `yaml:"merge_equalities"`
}

// InvariantsConfig controls which candidate invariants are created.
type InvariantsConfig struct {
	// Disabled lists kinds that are never instantiated, e.g. "non-zero".
	Disabled []string `yaml:"disabled"`
	// OneOfLimit is the largest number of distinct values a OneOf invariant keeps.
	OneOfLimit int `yaml:"one_of_limit"`
}

// LogConfig controls the run logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is one of text, json or auto.
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Mode:             ModeOptimized,
		DynamicConstants: true,
		Workers:          DefaultWorkers,
		Hierarchy: HierarchyConfig{
			MergeEqualities: true,
		},
		Invariants: InvariantsConfig{
			OneOfLimit: DefaultOneOfLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Decode reads YAML configuration from r on top of the defaults and validates the result. Unknown
// keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options for consistency.
func (c *Config) Validate() error {
	var errs []error
	switch c.Mode {
	case ModeOptimized, ModeSimple:
	default:
		errs = append(errs, fmt.Errorf("mode: unknown value %q", c.Mode))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers: must be at least 1, got %d", c.Workers))
	}
	if c.Invariants.OneOfLimit < 1 {
		errs = append(errs, fmt.Errorf("invariants.one_of_limit: must be at least 1, got %d", c.Invariants.OneOfLimit))
	}
	if c.PostProcess.OneOfOnly && c.PostProcess.Skip {
		errs = append(errs, errors.New("post_process: one_of_only and skip are mutually exclusive"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown value %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json", "auto":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown value %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Optimized reports whether the run uses the equality and constants machinery.
func (c *Config) Optimized() bool {
	return c.Mode != ModeSimple
}
