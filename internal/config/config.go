package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDataDir     = ".fchmm"
	DefaultConcurrency = 0
	DefaultGridFrom    = 0.0
	DefaultGridTo      = 1.0
	DefaultGridLength  = 11
	DefaultLower       = 0.025
	DefaultUpper       = 0.975
)

type Config struct {
	DataDir     string         `yaml:"data_dir"`
	Input       string         `yaml:"input"`
	Concurrency int            `yaml:"concurrency"`
	Grid        GridConfig     `yaml:"grid"`
	Interval    IntervalConfig `yaml:"interval"`

	// gridSet records that Grid came from a config file, preset or flag
	// rather than the defaults.
	gridSet bool
}

// GridConfig describes the candidate tiv values. Explicit Values take
// precedence over the From/To/Length span.
type GridConfig struct {
	Values []float64 `yaml:"values,omitempty"`
	From   float64   `yaml:"from"`
	To     float64   `yaml:"to"`
	Length int       `yaml:"length"`
}

type IntervalConfig struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:     DefaultDataDir,
		Concurrency: DefaultConcurrency,
		Grid: GridConfig{
			From:   DefaultGridFrom,
			To:     DefaultGridTo,
			Length: DefaultGridLength,
		},
		Interval: IntervalConfig{
			Lower: DefaultLower,
			Upper: DefaultUpper,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	var present struct {
		Grid *yaml.Node `yaml:"grid"`
	}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, err
	}
	cfg.gridSet = present.Grid != nil
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetGrid replaces the grid and marks it as explicitly chosen.
func (c *Config) SetGrid(g GridConfig) {
	c.Grid = g
	c.gridSet = true
}

// GridSet reports whether the grid was given by a config file, preset or
// SetGrid.
func (c *Config) GridSet() bool {
	return c.gridSet
}

// Sweep returns the tiv values to evaluate. Values carried by the input
// dataset are used only when no grid was set explicitly.
func (c *Config) Sweep(fromData []float64) []float64 {
	if !c.gridSet && len(fromData) > 0 {
		out := make([]float64, len(fromData))
		copy(out, fromData)
		return out
	}
	return c.Grid.Points()
}

func (c *Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.Interval.Lower < 0 || c.Interval.Upper > 1 || c.Interval.Lower >= c.Interval.Upper {
		return fmt.Errorf("interval must satisfy 0 <= lower < upper <= 1, got [%g, %g]", c.Interval.Lower, c.Interval.Upper)
	}
	return nil
}

func (g GridConfig) Validate() error {
	if len(g.Values) > 0 {
		return nil
	}
	if g.Length < 1 {
		return fmt.Errorf("grid length must be >0, got %d", g.Length)
	}
	if g.Length > 1 && g.From == g.To {
		return fmt.Errorf("grid from and to must differ when length > 1")
	}
	return nil
}

// Points returns the candidate tiv values in sweep order.
func (g GridConfig) Points() []float64 {
	if len(g.Values) > 0 {
		out := make([]float64, len(g.Values))
		copy(out, g.Values)
		return out
	}
	if g.Length == 1 {
		return []float64{g.From}
	}
	if g.Length < 1 {
		return nil
	}
	return floats.Span(make([]float64, g.Length), g.From, g.To)
}
