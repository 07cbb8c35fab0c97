// Package compiler wires the core pipeline together: IR builder, join
// inference (invoked by the builder), optimizer, SQL emitter, and
// diagram renderer, plus the optional cache and trace ambient concerns
// (spec §4, §A.2, §B). Compile is a pure function of (Config, UserQuery)
// except for the optional cache, which only ever short-circuits a
// compile with a byte-identical prior result (spec §5).
package compiler

import (
	"sort"

	"github.com/screenql/compiler/internal/builder"
	"github.com/screenql/compiler/internal/cache"
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/diagram"
	"github.com/screenql/compiler/internal/model"
	"github.com/screenql/compiler/internal/optimize"
	"github.com/screenql/compiler/internal/params"
	"github.com/screenql/compiler/internal/sqlgen"
	"github.com/screenql/compiler/internal/trace"
)

// Result is the core's output (spec §6).
type Result struct {
	SQL        string
	Parameters *params.Table
	Diagram    string
	// Trace is empty unless the Compiler was constructed with
	// WithVerbose(true) (spec §A.2).
	Trace string
}

// Compiler holds the process-wide schema and optional ambient
// infrastructure (cache, verbose tracing, the risky optimizer passes)
// a single compile call is run against.
type Compiler struct {
	cfg     *config.Config
	cache   *cache.CompiledQueryCache
	verbose bool
	risky   bool
}

// Option configures a Compiler at construction time.
type Option func(*Compiler)

// WithCache attaches a compiled-query cache (spec §B, §C.1). A nil c is
// accepted and simply disables caching.
func WithCache(c *cache.CompiledQueryCache) Option {
	return func(comp *Compiler) { comp.cache = c }
}

// WithVerbose enables per-pass trace recording (spec §A.2, §C.2).
func WithVerbose(v bool) Option {
	return func(comp *Compiler) { comp.verbose = v }
}

// WithRiskyOptimizations enables the optimizer's risky passes (spec
// §4.4 "risky passes"), off by default since they trade a narrower
// applicability condition for a more aggressive rewrite.
func WithRiskyOptimizations(v bool) Option {
	return func(comp *Compiler) { comp.risky = v }
}

// New constructs a Compiler bound to cfg.
func New(cfg *config.Config, opts ...Option) *Compiler {
	c := &Compiler{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile lowers q through the full pipeline: IR build (which also runs
// join inference and the required-columns pass), the optimizer, SQL
// emission, and diagram rendering. A cache hit returns its stored result
// without touching the pipeline at all.
func (c *Compiler) Compile(q *model.UserQuery) (*Result, error) {
	var cacheKey string
	if c.cache != nil {
		if key, err := cache.Key(q); err == nil {
			cacheKey = key
			if entry, ok := c.cache.Get(key); ok {
				return entryToResult(entry), nil
			}
		}
	}

	tr := trace.NewRecorder(c.verbose)

	b := builder.New(c.cfg)
	built, err := b.Build(q)
	if err != nil {
		return nil, err
	}

	if err := optimize.Optimize(built.Graph, c.cfg, c.risky, tr); err != nil {
		return nil, err
	}

	sql, err := sqlgen.Emit(built.Graph, built.Params, c.cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SQL:        sql,
		Parameters: built.Params,
		Diagram:    diagram.Render(built.Graph),
		Trace:      tr.Render(),
	}

	if c.cache != nil && cacheKey != "" {
		c.cache.Set(cacheKey, cache.Entry{
			SQL:        result.SQL,
			Parameters: result.Parameters.AsMap(),
			Diagram:    result.Diagram,
		})
	}

	return result, nil
}

func entryToResult(e cache.Entry) *Result {
	pt := params.NewTable()
	names := make([]string, 0, len(e.Parameters))
	for name := range e.Parameters {
		names = append(names, name)
	}
	// "param_<n>" names: shorter first, then lexical, gives numeric order.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		pt.Restore(name, e.Parameters[name])
	}
	return &Result{SQL: e.SQL, Parameters: pt, Diagram: e.Diagram}
}
