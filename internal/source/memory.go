package source

import (
	"context"
	"sync"

	"github.com/roach88/loadmix/internal/table"
)

// Memory serves tables registered with Put. It counts loads per key so
// tests can check caching behaviour.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	tables map[memoryKey]*table.Table
	loads  map[memoryKey]int
}

type memoryKey struct {
	year     int
	scenario string
}

// NewMemory returns an empty in-memory source.
func NewMemory() *Memory {
	return &Memory{
		tables: make(map[memoryKey]*table.Table),
		loads:  make(map[memoryKey]int),
	}
}

// Put registers tbl under (year, scenario).
func (m *Memory) Put(year int, scenario string, tbl *table.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbl.Year = year
	tbl.Scenario = scenario
	m.tables[memoryKey{year, scenario}] = tbl
}

// Load implements Source.
func (m *Memory) Load(ctx context.Context, year int, scenario string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey{year, scenario}
	m.loads[k]++
	tbl, ok := m.tables[k]
	if !ok {
		return nil, NotFound(year, scenario)
	}
	return tbl, nil
}

// Loads returns how many times (year, scenario) was requested.
func (m *Memory) Loads(year int, scenario string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads[memoryKey{year, scenario}]
}
