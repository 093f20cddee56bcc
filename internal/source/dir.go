package source

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/loadmix/internal/table"
)

// File name suffixes recognized by Dir, in lookup order.
var fileSuffixes = []string{".csv.gz", ".csv"}

// Dir loads tables from "{year}_{scenario}.csv.gz" (or ".csv") files in one
// directory. It holds no cache; callers wrap it in a request-scoped cache.
type Dir struct {
	root   string
	opts   Options
	logger *slog.Logger
}

// NewDir returns a Source reading from root. A nil logger discards output.
func NewDir(root string, opts Options, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dir{root: root, opts: opts.withDefaults(), logger: logger}
}

// Root returns the directory the source reads from.
func (d *Dir) Root() string {
	return d.root
}

// Path returns the first existing file for (year, scenario).
func (d *Dir) Path(year int, scenario string) (string, error) {
	if err := ValidateScenarioID(scenario); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	base := fmt.Sprintf("%d_%s", year, scenario)
	for _, suffix := range fileSuffixes {
		p := filepath.Join(d.root, base+suffix)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", NotFound(year, scenario)
}

// Load reads and parses the table for (year, scenario).
func (d *Dir) Load(ctx context.Context, year int, scenario string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Path(year, scenario)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("loading scenario file", "path", path)
	tbl, err := ReadFile(path, d.opts)
	if err != nil {
		return nil, err
	}
	tbl.Year = year
	tbl.Scenario = scenario
	d.logger.Debug("scenario file loaded", "path", path, "rows", tbl.Len(), "states", len(tbl.States()))
	return tbl, nil
}

// ReadFile parses one CSV file, decompressing it when the name ends in .gz.
func ReadFile(path string, opts Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	tbl, err := ReadCSV(r, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return tbl, nil
}

// Entry is one scenario file discovered in a directory.
type Entry struct {
	Year     int
	Scenario string
	Path     string
}

// List returns the scenario files in the directory ordered by year and
// scenario. Names that do not follow "{year}_{scenario}" are ignored. When
// both a .csv.gz and a .csv exist, the compressed file wins as in Path.
func (d *Dir) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read data directory: %w", err)
	}

	byKey := make(map[string]Entry)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		entry, ok := parseFileName(de.Name())
		if !ok {
			continue
		}
		entry.Path = filepath.Join(d.root, de.Name())
		k := fmt.Sprintf("%d_%s", entry.Year, entry.Scenario)
		if prev, exists := byKey[k]; exists && strings.HasSuffix(prev.Path, ".gz") {
			continue
		}
		byKey[k] = entry
	}

	out := make([]Entry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Scenario < out[j].Scenario
	})
	return out, nil
}

func parseFileName(name string) (Entry, bool) {
	var stem string
	for _, suffix := range fileSuffixes {
		if strings.HasSuffix(name, suffix) {
			stem = strings.TrimSuffix(name, suffix)
			break
		}
	}
	if stem == "" {
		return Entry{}, false
	}
	yearPart, scenario, found := strings.Cut(stem, "_")
	if !found {
		return Entry{}, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || ValidateScenarioID(scenario) != nil {
		return Entry{}, false
	}
	return Entry{Year: year, Scenario: scenario}, true
}
