// Package shedshift loads the per-state, per-subsector shed and shift
// fractions used by peak decomposition.
//
// The configuration is a YAML mapping of state to subsector to fractions:
//
//	tx:
//	  residential space heating: {shed: 0.3, shift: 0.2}
//	  commercial lighting: {shed: 0.1, shift: 0}
//
// It is loaded once at process start and read-only afterwards.
package shedshift

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/loadmix/internal/table"
)

// Fractions is the share of a peak value that is shed or shifted.
type Fractions struct {
	Shed  float64 `yaml:"shed" json:"shed"`
	Shift float64 `yaml:"shift" json:"shift"`
}

// IsZero reports whether neither shed nor shift applies.
func (f Fractions) IsZero() bool {
	return f.Shed == 0 && f.Shift == 0
}

// Config maps normalized state and subsector names to fractions.
type Config struct {
	entries map[string]map[string]Fractions
}

// New builds a Config from a plain map, validating every entry.
func New(m map[string]map[string]Fractions) (*Config, error) {
	c := &Config{entries: make(map[string]map[string]Fractions, len(m))}
	for state, subs := range m {
		s := table.NormalizeState(state)
		if s == "" || table.IsAllStates(s) {
			return nil, fmt.Errorf("invalid state %q", state)
		}
		if c.entries[s] == nil {
			c.entries[s] = make(map[string]Fractions, len(subs))
		}
		for sub, f := range subs {
			if err := validate(f); err != nil {
				return nil, fmt.Errorf("%s / %s: %w", state, sub, err)
			}
			c.entries[s][table.NormalizeName(sub)] = f
		}
	}
	return c, nil
}

// Empty returns a Config with no entries.
func Empty() *Config {
	return &Config{entries: map[string]map[string]Fractions{}}
}

func validate(f Fractions) error {
	for name, v := range map[string]float64{"shed": f.Shed, "shift": f.Shift} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s fraction %v must be a finite non-negative number", name, v)
		}
	}
	return nil
}

// Parse reads a YAML document. Unknown fraction fields are rejected.
func Parse(data []byte) (*Config, error) {
	var m map[string]map[string]Fractions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse shed/shift config: %w", err)
	}
	return New(m)
}

// Load reads the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shed/shift config: %w", err)
	}
	return Parse(data)
}

// Lookup returns the fractions for (state, subsector).
func (c *Config) Lookup(state, subsector string) (Fractions, bool) {
	subs, ok := c.entries[table.NormalizeState(state)]
	if !ok {
		return Fractions{}, false
	}
	f, ok := subs[table.NormalizeName(subsector)]
	return f, ok
}

// HasState reports whether any entry exists for state.
func (c *Config) HasState(state string) bool {
	_, ok := c.entries[table.NormalizeState(state)]
	return ok
}

// States returns the configured states in order.
func (c *Config) States() []string {
	out := make([]string, 0, len(c.entries))
	for s := range c.entries {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Overcommitted lists "state/subsector" entries whose shed and shift add up
// to more than one. They are allowed; their static share clamps to zero.
func (c *Config) Overcommitted() []string {
	var out []string
	for s, subs := range c.entries {
		for sub, f := range subs {
			if f.Shed+f.Shift > 1 {
				out = append(out, s+"/"+sub)
			}
		}
	}
	sort.Strings(out)
	return out
}
