// Package config loads and saves YAML scenario files: the species and
// gear attribute tables, grid bounds, resource coefficients, run
// settings and the effort schedule of one projection.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/okeanid/sizespec/internal/grid"
	"github.com/okeanid/sizespec/internal/params"
	"github.com/okeanid/sizespec/internal/project"
)

const (
	DefaultNoW    = 100
	DefaultMinWPP = 1e-10
	DefaultDt     = 0.1
	DefaultTMax   = 10.0
	DefaultTSave  = 1.0
)

type Config struct {
	Grid        GridConfig       `yaml:"grid"`
	Resource    params.Resource  `yaml:"resource,omitempty"`
	Species     []params.Species `yaml:"species"`
	Gears       []params.Gear    `yaml:"gears,omitempty"`
	Interaction [][]float64      `yaml:"interaction,omitempty"`
	Sim         SimConfig        `yaml:"sim"`
	Effort      EffortConfig     `yaml:"effort,omitempty"`
}

type GridConfig struct {
	NoW    int     `yaml:"no_w"`
	MinW   float64 `yaml:"min_w"`
	MaxW   float64 `yaml:"max_w"`
	MinWPP float64 `yaml:"min_w_pp"`
}

type SimConfig struct {
	Dt    float64 `yaml:"dt"`
	TMax  float64 `yaml:"t_max"`
	TSave float64 `yaml:"t_save"`
}

// EffortConfig mirrors the three accepted effort shapes; at most one
// field is set.
type EffortConfig struct {
	Constant *float64           `yaml:"constant,omitempty"`
	Vector   []float64          `yaml:"vector,omitempty"`
	Table    *EffortTableConfig `yaml:"table,omitempty"`
}

type EffortTableConfig struct {
	Times []float64   `yaml:"times"`
	Gears []string    `yaml:"gears,omitempty"`
	Rows  [][]float64 `yaml:"rows"`
}

// DefaultConfig is a small unfished two-species scenario, mostly useful
// as a template to edit.
func DefaultConfig() *Config {
	return &Config{
		Grid: GridConfig{NoW: DefaultNoW, MinW: 0.001, MaxW: 1000, MinWPP: DefaultMinWPP},
		Species: []params.Species{
			{Name: "small", WMin: 0.001, WMax: 100, RMax: 1e7},
			{Name: "large", WMin: 0.01, WMax: 1000, RMax: 1e6},
		},
		Sim: SimConfig{Dt: DefaultDt, TMax: DefaultTMax, TSave: DefaultTSave},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyDefaults() {
	if c.Grid.NoW == 0 {
		c.Grid.NoW = DefaultNoW
	}
	if c.Grid.MinWPP == 0 {
		c.Grid.MinWPP = DefaultMinWPP
	}
	if c.Grid.MinW == 0 || c.Grid.MaxW == 0 {
		// Fall back to the span of the species table.
		for _, sp := range c.Species {
			if c.Grid.MinW == 0 || sp.WMin < c.Grid.MinW {
				c.Grid.MinW = sp.WMin
			}
			if sp.WMax > c.Grid.MaxW {
				c.Grid.MaxW = sp.WMax
			}
		}
	}
	if c.Sim.Dt == 0 {
		c.Sim.Dt = DefaultDt
	}
	if c.Sim.TMax == 0 {
		c.Sim.TMax = DefaultTMax
	}
	if c.Sim.TSave == 0 {
		c.Sim.TSave = c.Sim.Dt
	}
}

// BuildStore assembles and validates the parameter store described by
// the scenario.
func (c *Config) BuildStore() (*params.Store, error) {
	g, err := grid.New(c.Grid.NoW, c.Grid.MinW, c.Grid.MaxW, c.Grid.MinWPP)
	if err != nil {
		return nil, err
	}
	s, err := params.New(g, c.Species, c.Gears, c.Resource)
	if err != nil {
		return nil, err
	}
	if c.Interaction != nil {
		// Installed as a copy so the store never aliases the scenario's
		// slices.
		inter := make([][]float64, len(c.Interaction))
		for i, row := range c.Interaction {
			inter[i] = append([]float64(nil), row...)
		}
		if err := s.Modify(func(cand *params.Store) {
			cand.Interaction = inter
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// RunConfig translates the sim block into projector settings.
func (c *Config) RunConfig() project.Config {
	return project.Config{TMax: c.Sim.TMax, Dt: c.Sim.Dt, TSave: c.Sim.TSave}
}

// BuildEffort translates the effort block into the projector's effort
// input. An empty block means no fishing.
func (c *Config) BuildEffort() project.Effort {
	switch {
	case c.Effort.Constant != nil:
		return project.Constant(*c.Effort.Constant)
	case c.Effort.Vector != nil:
		return project.Vector(c.Effort.Vector)
	case c.Effort.Table != nil:
		t := c.Effort.Table
		return project.Table(t.Times, t.Gears, t.Rows)
	default:
		return project.Effort{}
	}
}
