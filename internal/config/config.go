// Package config loads experiment configuration from YAML layered over
// embedded defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"evoworld/internal/population"
	"evoworld/internal/stats"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	SelectionElite          = "elite"
	SelectionTournament     = "tournament"
	SelectionFitnessSharing = "fitness-sharing"

	TrackerPlain  = "plain"
	TrackerPruned = "pruned"
	TrackerNone   = "none"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Name        string `yaml:"name"`
	Seed        int64  `yaml:"seed"`
	Generations int    `yaml:"generations"`

	Population PopulationConfig `yaml:"population"`
	Organism   OrganismConfig   `yaml:"organism"`
	Selection  SelectionConfig  `yaml:"selection"`
	Lineage    LineageConfig    `yaml:"lineage"`
	OEE        OEEConfig        `yaml:"oee"`
	Output     OutputConfig     `yaml:"output"`
}

type PopulationConfig struct {
	Strategy       string               `yaml:"strategy"`
	Size           int                  `yaml:"size"`
	SerialTransfer SerialTransferConfig `yaml:"serial_transfer"`
	Grid           GridConfig           `yaml:"grid"`
	Pools          PoolsConfig          `yaml:"pools"`
}

type SerialTransferConfig struct {
	MaxSize        int  `yaml:"max_size"`
	BottleneckSize int  `yaml:"bottleneck_size"`
	Truncate       bool `yaml:"truncate"`
}

type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type PoolsConfig struct {
	Count         int           `yaml:"count"`
	Sizes         []int         `yaml:"sizes"`
	Connections   map[int][]int `yaml:"connections"`
	MigrationRate float64       `yaml:"migration_rate"`
}

type OrganismConfig struct {
	GenomeLength   int     `yaml:"genome_length"`
	InitialDensity float64 `yaml:"initial_density"`
	MutationRate   float64 `yaml:"mutation_rate"`
	MutateOnBirth  bool    `yaml:"mutate_on_birth"`
}

type SelectionConfig struct {
	Method         string `yaml:"method"`
	TournamentSize int    `yaml:"tournament_size"`
	EliteCount     int    `yaml:"elite_count"`
	// EliteCopies of zero refills the population: size / elite_count.
	EliteCopies     int     `yaml:"elite_copies"`
	NicheRadius     float64 `yaml:"niche_radius"`
	SharingExponent float64 `yaml:"sharing_exponent"`
}

type LineageConfig struct {
	Tracker string `yaml:"tracker"`
}

type OEEConfig struct {
	Enabled     bool `yaml:"enabled"`
	Resolution  int  `yaml:"resolution"`
	Persistence int  `yaml:"persistence"`
}

type OutputConfig struct {
	Dir              string `yaml:"dir"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load reads path over the embedded defaults and validates the result. An
// empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse overlays data on the embedded defaults; fields absent from data keep
// their default values.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Generations > 0, "generations must be > 0: %d", c.Generations)
	check(c.Population.Size > 0, "population size must be > 0: %d", c.Population.Size)
	check(slices.Contains(population.Kinds(), c.Population.Strategy), "unknown population strategy %q", c.Population.Strategy)
	switch c.Population.Strategy {
	case population.KindGrid:
		g := c.Population.Grid
		check(g.Width > 0 && g.Height > 0, "grid dimensions must be > 0: %dx%d", g.Width, g.Height)
		check(c.Population.Size <= g.Width*g.Height, "population size %d exceeds grid %dx%d", c.Population.Size, g.Width, g.Height)
	case population.KindSerialTransfer:
		st := c.Population.SerialTransfer
		check(st.BottleneckSize > 0 && st.BottleneckSize < st.MaxSize, "bottleneck size %d must be in (0, max size %d)", st.BottleneckSize, st.MaxSize)
		check(c.Population.Size <= st.MaxSize, "population size %d exceeds max size %d", c.Population.Size, st.MaxSize)
	case population.KindPools:
		p := c.Population.Pools
		check(p.Count > 0, "pool count must be > 0: %d", p.Count)
		check(p.MigrationRate >= 0 && p.MigrationRate <= 1, "migration rate must be in [0, 1]: %v", p.MigrationRate)
		if len(p.Sizes) > 1 {
			total := 0
			for _, s := range p.Sizes {
				total += s
			}
			check(len(p.Sizes) == p.Count, "pool sizes list %d entries for %d pools", len(p.Sizes), p.Count)
			check(total == c.Population.Size, "pool sizes sum to %d, population size is %d", total, c.Population.Size)
		}
	}

	o := c.Organism
	check(o.GenomeLength > 0, "genome length must be > 0: %d", o.GenomeLength)
	check(o.InitialDensity >= 0 && o.InitialDensity <= 1, "initial density must be in [0, 1]: %v", o.InitialDensity)
	check(o.MutationRate >= 0 && o.MutationRate <= 1, "mutation rate must be in [0, 1]: %v", o.MutationRate)

	s := c.Selection
	switch s.Method {
	case SelectionElite:
		check(s.EliteCount > 0 && s.EliteCount <= c.Population.Size, "elite count %d must be in (0, %d]", s.EliteCount, c.Population.Size)
		check(s.EliteCopies >= 0, "elite copies must be >= 0: %d", s.EliteCopies)
	case SelectionTournament, SelectionFitnessSharing:
		check(s.TournamentSize > 0 && s.TournamentSize <= c.Population.Size, "tournament size %d must be in (0, %d]", s.TournamentSize, c.Population.Size)
		if s.Method == SelectionFitnessSharing {
			check(s.NicheRadius > 0, "niche radius must be > 0: %v", s.NicheRadius)
		}
	default:
		check(false, "unknown selection method %q", s.Method)
	}

	check(slices.Contains([]string{TrackerPlain, TrackerPruned, TrackerNone}, c.Lineage.Tracker), "unknown lineage tracker %q", c.Lineage.Tracker)
	if c.OEE.Enabled {
		check(c.Lineage.Tracker != TrackerNone, "oee requires a lineage tracker")
		if err := c.OEEStats().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
		}
	}
	return errors.Join(errs...)
}

// PopulationStrategy translates the population section for the strategy
// factory.
func (c *Config) PopulationStrategy() population.Config {
	p := c.Population
	return population.Config{
		Kind: p.Strategy,
		SerialTransfer: population.SerialTransferConfig{
			MaxSize:            p.SerialTransfer.MaxSize,
			BottleneckSize:     p.SerialTransfer.BottleneckSize,
			TruncateBottleneck: p.SerialTransfer.Truncate,
		},
		GridWidth:  p.Grid.Width,
		GridHeight: p.Grid.Height,
		Pools: population.PoolsConfig{
			Size:          p.Size,
			PoolCount:     p.Pools.Count,
			PoolSizes:     p.Pools.Sizes,
			Connections:   p.Pools.Connections,
			MigrationRate: p.Pools.MigrationRate,
		},
	}
}

func (c *Config) OEEStats() stats.OEEConfig {
	return stats.OEEConfig{Resolution: c.OEE.Resolution, Persistence: c.OEE.Persistence}
}

// EliteCopies is the number of offspring per elite, refilling the
// population when unset.
func (c *Config) EliteCopies() int {
	if c.Selection.EliteCopies > 0 {
		return c.Selection.EliteCopies
	}
	return max(1, c.Population.Size/c.Selection.EliteCount)
}

func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
