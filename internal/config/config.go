// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads and saves the YAML configuration of a fusion run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/mlnoga/fuselight/internal/weights"
	"gopkg.in/yaml.v3"
)

// Configuration of a fusion run as stored in YAML
type Config struct {
	// Weight map exponents and exposedness sigma
	Weights weights.Config `yaml:"weights"`

	// Requested number of pyramid levels; 0 selects the automatic count
	Levels int `yaml:"levels"`

	Output struct {
		// Fused output file, format chosen by suffix
		Out string `yaml:"out"`

		// Additional JPEG preview, %auto derives it from Out
		Jpg string `yaml:"jpg"`

		// Additional Radiance HDR output
		Hdr string `yaml:"hdr"`

		// JPEG quality in [1,100]
		Quality int `yaml:"quality"`
	} `yaml:"output"`

	Debug struct {
		// Intermediate written by the weights command
		Stage weights.Stage `yaml:"stage"`

		// Output pattern for intermediates, with %d replaced by the image ID
		WeightsOut string `yaml:"weightsOut"`

		// Also write false-color heat maps of the intermediates
		Heatmap bool `yaml:"heatmap"`
	} `yaml:"debug"`

	Processing struct {
		// Maximum number of images processed in parallel
		MaxThreads int `yaml:"maxThreads"`
	} `yaml:"processing"`
}

// Returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{Weights: weights.DefaultConfig()}
	cfg.Output.Out = "out.fits"
	cfg.Output.Jpg = "%auto"
	cfg.Output.Quality = 95
	cfg.Debug.Stage = weights.StageWeight
	cfg.Debug.WeightsOut = "weights%d.fits"
	cfg.Processing.MaxThreads = runtime.GOMAXPROCS(0)
	return cfg
}

// Loads configuration from a YAML file on top of the defaults.
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Saves the configuration to a YAML file, creating its directory if needed
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Checks value ranges
func (cfg *Config) Validate() error {
	if err := cfg.Weights.Validate(); err != nil {
		return err
	}
	if cfg.Levels < 0 {
		return errors.New(fmt.Sprintf("levels must not be negative, got %d", cfg.Levels))
	}
	if cfg.Output.Quality < 1 || cfg.Output.Quality > 100 {
		return errors.New(fmt.Sprintf("JPEG quality must be in [1,100], got %d", cfg.Output.Quality))
	}
	if cfg.Processing.MaxThreads < 0 {
		return errors.New(fmt.Sprintf("maxThreads must not be negative, got %d", cfg.Processing.MaxThreads))
	}
	return nil
}
