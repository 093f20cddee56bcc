// Package config loads the loadmix service configuration.
//
// Configuration is a CUE file checked against an embedded schema that also
// supplies defaults. Fields are closed: a misspelled key is an error.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/source"
)

//go:embed schema.cue
var schemaSource []byte

// Config is the decoded service configuration.
type Config struct {
	DataDir           string   `json:"data_dir"`
	Database          string   `json:"database"`
	Listen            string   `json:"listen"`
	BaselineScenario  string   `json:"baseline_scenario"`
	PeakRows          int      `json:"peak_rows"`
	FallbackAlignment string   `json:"fallback_alignment"`
	ShedShiftFile     string   `json:"shed_shift_file"`
	TimestampColumn   string   `json:"timestamp_column"`
	SubsectorColumn   string   `json:"subsector_column"`
	AttributeColumns  []string `json:"attribute_columns"`
	MaxParallelLoads  int      `json:"max_parallel_loads"`
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse(nil, "defaults")
}

// Load reads the CUE file at path. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies CUE source with the schema and decodes the result. name
// is used in error positions.
func Parse(data []byte, name string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	if len(data) == 0 {
		data = []byte("{}")
	}
	user := ctx.CompileBytes(data, cue.Filename(name))
	if err := user.Err(); err != nil {
		return nil, fmt.Errorf("config %s: %s", name, cueerrors.Details(err, nil))
	}

	v := def.Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("config %s: %s", name, cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: decode: %w", name, err)
	}
	return &cfg, nil
}

// SourceOptions returns the CSV column mapping.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		TimestampColumn:  c.TimestampColumn,
		SubsectorColumn:  c.SubsectorColumn,
		AttributeColumns: append([]string(nil), c.AttributeColumns...),
	}
}

// EngineOptions returns composition options. logger and obs may be nil.
func (c *Config) EngineOptions(logger *slog.Logger, obs compose.Observer) (compose.Options, error) {
	align, err := compose.ParseAlignment(c.FallbackAlignment)
	if err != nil {
		return compose.Options{}, err
	}
	return compose.Options{
		BaselineScenario:  c.BaselineScenario,
		PeakRows:          c.PeakRows,
		FallbackAlignment: align,
		MaxParallelLoads:  c.MaxParallelLoads,
		Logger:            logger,
		Observer:          obs,
	}, nil
}
