package cmd

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset describes a named run configuration in defaults.yaml. Zero-valued
// fields leave the corresponding flag default in place.
type Preset struct {
	Width     int      `yaml:"width"`
	Height    int      `yaml:"height"`
	Steps     int      `yaml:"steps"`
	Iters     int      `yaml:"iters"`
	Workers   int      `yaml:"workers"`
	Fill      *float64 `yaml:"fill"` // pointer: 0.0 is a legitimate fill
	Barrier   string   `yaml:"barrier"`
	SampleRow int      `yaml:"sample_row"`
	SampleCol int      `yaml:"sample_col"`
	Reps      int      `yaml:"reps"`
}

// Config represents the full defaults.yaml structure.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Version       string            `yaml:"version"`
	DefaultPreset string            `yaml:"default_preset"`
	Presets       map[string]Preset `yaml:"presets"`
}

// loadDefaultsConfig parses defaults.yaml into a Config struct.
// Uses strict field checking: typos must cause errors.
func loadDefaultsConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read defaults file %q: %w", path, err)
	}
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse defaults YAML %q: %w", path, err)
	}
	return cfg, nil
}

// GetPreset returns the preset called name, or the file's default preset when
// name is empty.
func GetPreset(cfg Config, name string) (Preset, error) {
	if name == "" {
		name = cfg.DefaultPreset
	}
	if name == "" {
		return Preset{}, nil
	}
	preset, ok := cfg.Presets[name]
	if !ok {
		available := make([]string, 0, len(cfg.Presets))
		for k := range cfg.Presets {
			available = append(available, k)
		}
		sort.Strings(available)
		return Preset{}, fmt.Errorf("preset %q not found (available: %v)", name, available)
	}
	return preset, nil
}
