package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"rowfilter/config"
	"rowfilter/filter"
	"rowfilter/parser"
	"rowfilter/source"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrUnknownPreset = errors.New("unknown preset")
)

// Rows are matched in chunks of this size, one goroutine per chunk.
const chunkSize = 1024

// Engine holds the loaded tables and selects rows with filter rules.
type Engine struct {
	cfgMu sync.RWMutex
	cfg   *config.Config
	mode  parser.Mode

	cache *FilterCache

	// Table protection
	tablesMu sync.RWMutex
	tables   map[string]*source.Table
}

// NewEngine initializes the engine. Tables are loaded by ReloadTables.
func NewEngine(cfg *config.Config) *Engine {
	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	return &Engine{
		cfg:    cfg,
		mode:   modeOf(cfg),
		cache:  NewFilterCache(ttl),
		tables: make(map[string]*source.Table),
	}
}

func modeOf(cfg *config.Config) parser.Mode {
	if cfg.Parser.Lenient {
		return parser.ModeLenient
	}
	return parser.ModeStrict
}

// UpdateConfig swaps the configuration. It fits config.Manager.LoadCallback.
func (e *Engine) UpdateConfig(cfg *config.Config) error {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.mode = modeOf(cfg)
	e.cfgMu.Unlock()
	return nil
}

func (e *Engine) config() (*config.Config, parser.Mode) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg, e.mode
}

// Compile parses rule in the configured mode, reusing a cached tree when one exists.
func (e *Engine) Compile(rule string) (filter.Filter, error) {
	_, mode := e.config()
	if f, ok := e.cache.Get(mode, rule); ok {
		return f, nil
	}

	f, err := parser.ParseWithMode(rule, mode)
	if err != nil {
		return nil, err
	}
	e.cache.Set(mode, rule, f)
	log.WithFields(log.Fields{"rule": rule, "mode": mode, "tree": f.String()}).Debug("Compiled filter")
	return f, nil
}

// ReloadTables loads every configured table concurrently and swaps them in
// at once. A table that fails to load keeps its previous contents; the
// failures are returned joined.
func (e *Engine) ReloadTables(ctx context.Context, loader *source.Loader) error {
	cfg, _ := e.config()

	var (
		mu       sync.Mutex
		loaded   = make(map[string]*source.Table)
		failures []error
		g        errgroup.Group
	)
	g.SetLimit(4)

	log.Printf("Reloading %d tables...", len(cfg.Tables))

	for _, src := range cfg.Tables {
		g.Go(func() error {
			t, err := loader.Load(ctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("Failed to load table '%s': %v", src.Name, err)
				failures = append(failures, fmt.Errorf("table '%s': %w", src.Name, err))
				return nil
			}
			loaded[src.Name] = t
			log.Printf("Loaded %d rows from '%s'", len(t.Rows), src.Name)
			return nil
		})
	}
	_ = g.Wait()

	// Atomic Swap
	e.tablesMu.Lock()
	next := make(map[string]*source.Table, len(cfg.Tables))
	for _, src := range cfg.Tables {
		if t, ok := loaded[src.Name]; ok {
			next[src.Name] = t
		} else if old, ok := e.tables[src.Name]; ok {
			next[src.Name] = old
		}
	}
	e.tables = next
	e.tablesMu.Unlock()

	log.Printf("Tables reloaded.")
	return errors.Join(failures...)
}

// SetTable installs t under its name, replacing any table loaded before.
func (e *Engine) SetTable(t *source.Table) {
	e.tablesMu.Lock()
	e.tables[t.Name] = t
	e.tablesMu.Unlock()
}

// Table returns a loaded table.
func (e *Engine) Table(name string) (*source.Table, bool) {
	e.tablesMu.RLock()
	defer e.tablesMu.RUnlock()
	t, ok := e.tables[name]
	return t, ok
}

// Query selects rows of Table. With an empty Column a row matches when any
// of its cells matches.
type Query struct {
	Table  string
	Column string
	Rule   string
}

// Result contains the rows a query selected, in table order.
type Result struct {
	Table   string
	Columns []string
	Filter  filter.Filter
	Rows    [][]string
}

// Select runs q against the loaded tables.
func (e *Engine) Select(ctx context.Context, q Query) (*Result, error) {
	t, ok := e.Table(q.Table)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTable, q.Table)
	}

	col := -1
	if q.Column != "" {
		if col = t.ColumnIndex(q.Column); col < 0 {
			return nil, fmt.Errorf("%w: '%s' in table '%s'", ErrUnknownColumn, q.Column, q.Table)
		}
	}

	f, err := e.Compile(q.Rule)
	if err != nil {
		return nil, err
	}

	rows, err := matchRows(ctx, t.Rows, col, f)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"table":   q.Table,
		"column":  q.Column,
		"rule":    q.Rule,
		"matched": len(rows),
		"total":   len(t.Rows),
	}).Debug("Selected rows")

	return &Result{Table: t.Name, Columns: t.Columns, Filter: f, Rows: rows}, nil
}

// SelectPreset runs the named preset from the configuration.
func (e *Engine) SelectPreset(ctx context.Context, name string) (*Result, error) {
	cfg, _ := e.config()
	p, ok := cfg.Preset(name)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownPreset, name)
	}
	return e.Select(ctx, Query{Table: p.Table, Column: p.Column, Rule: p.Rule})
}

// matchRows filters rows in parallel chunks and keeps their order.
func matchRows(ctx context.Context, rows [][]string, col int, f filter.Filter) ([][]string, error) {
	chunks := (len(rows) + chunkSize - 1) / chunkSize
	parts := make([][][]string, chunks)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := 0; i < chunks; i++ {
		lo := i * chunkSize
		hi := min(lo+chunkSize, len(rows))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var matched [][]string
			for _, row := range rows[lo:hi] {
				if rowMatches(row, col, f) {
					matched = append(matched, row)
				}
			}
			parts[i] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out [][]string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func rowMatches(row []string, col int, f filter.Filter) bool {
	if col >= 0 {
		if col >= len(row) {
			return false
		}
		return f.Match(row[col])
	}
	for _, cell := range row {
		if f.Match(cell) {
			return true
		}
	}
	return false
}
