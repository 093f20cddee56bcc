package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/loadmix/internal/compose"
	"github.com/roach88/loadmix/internal/config"
	"github.com/roach88/loadmix/internal/shedshift"
	"github.com/roach88/loadmix/internal/source"
	"github.com/roach88/loadmix/internal/store"
)

// SourceFlags are the per-command overrides of where tables come from.
type SourceFlags struct {
	Database string
	DataDir  string
}

// env is the runtime shared by commands: configuration, logger, table
// source and, when a database is configured, the store.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	src    source.Source
}

// newLogger builds the process logger: text on w, Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads --config and applies flag overrides. Errors are
// ExitErrors with ExitCommandError.
func loadConfig(opts *RootOptions, flags SourceFlags) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}
	return cfg, nil
}

// openEnv loads configuration and opens the table source. With a database
// configured, tables are read from the store; otherwise from the data
// directory. Callers must Close the env.
func openEnv(opts *RootOptions, flags SourceFlags, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(opts, flags)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: newLogger(logOut, opts.Verbose)}

	if cfg.Database != "" {
		e.logger.Debug("opening database", "path", cfg.Database)
		st, err := store.Open(cfg.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		e.store = st
		e.src = st
		return e, nil
	}

	e.logger.Debug("reading scenario files", "dir", cfg.DataDir)
	e.src = source.NewDir(cfg.DataDir, cfg.SourceOptions(), e.logger)
	return e, nil
}

// requireStore opens an env that must have a database.
func requireStore(opts *RootOptions, flags SourceFlags, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(opts, flags)
	if err != nil {
		return nil, err
	}
	if cfg.Database == "" {
		return nil, NewExitError(ExitCommandError, "no database configured: pass --db or set database in the config file")
	}
	return openEnv(opts, SourceFlags{Database: cfg.Database, DataDir: cfg.DataDir}, logOut)
}

// shedShift loads the configured shed/shift file, or an empty config.
func (e *env) shedShift() (*shedshift.Config, error) {
	if e.cfg.ShedShiftFile == "" {
		return shedshift.Empty(), nil
	}
	shed, err := shedshift.Load(e.cfg.ShedShiftFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load shed/shift config", err)
	}
	for _, entry := range shed.Overcommitted() {
		e.logger.Warn("shed + shift exceeds 1; static rows will be clamped", "entry", entry)
	}
	return shed, nil
}

// engine builds a composition engine over the env's source. obs and ids
// may be nil.
func (e *env) engine(obs compose.Observer, ids compose.RunIDGenerator) (*compose.Engine, error) {
	opts, err := e.cfg.EngineOptions(e.logger, obs)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid engine options", err)
	}
	opts.RunIDs = ids
	shed, err := e.shedShift()
	if err != nil {
		return nil, err
	}
	return compose.New(e.src, shed, opts), nil
}

// Close releases the database, if any.
func (e *env) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}
