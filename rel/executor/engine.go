package executor

import (
	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/catalog"
	"github.com/rowmill/rowmill/rel/mempool"
	"github.com/rowmill/rowmill/rel/plan"
	"github.com/rowmill/rowmill/rel/table"
)

// Engine ties one goroutine's execution state together: the table registry,
// the catalog, and the goroutine's pool. It owns a pool reference for its
// lifetime; Close releases it.
type Engine struct {
	db      *table.Database
	cat     *catalog.Catalog
	pool    *mempool.Pool
	options Options
}

// NewEngine creates an engine around the given registry, retaining a
// reference on the pool.
func NewEngine(db *table.Database, pool *mempool.Pool, opts Options) *Engine {
	pool.Retain()
	return &Engine{
		db:      db,
		cat:     catalog.New(),
		pool:    pool,
		options: opts,
	}
}

// DB returns the table registry.
func (e *Engine) DB() *table.Database { return e.db }

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.cat }

// Pool returns the engine's pool.
func (e *Engine) Pool() *mempool.Pool { return e.pool }

// ApplyCatalogDelta applies a DDL delta batch to the catalog.
func (e *Engine) ApplyCatalogDelta(delta string) error {
	return e.cat.ApplyDelta(delta)
}

// ExecutePlan clears the previous batch's catalog delta flags, then runs
// the join plan to completion and returns its output table.
func (e *Engine) ExecutePlan(node *plan.NestLoopIndexNode, params []rel.Value) (*table.TempTable, error) {
	e.cat.ResetDeltaState()
	exec := NewNestLoopIndexExecutor(e.options)
	if err := exec.Init(node, e.db); err != nil {
		return nil, err
	}
	if err := exec.Execute(params); err != nil {
		return nil, err
	}
	return exec.Output(), nil
}

// Close releases the engine's pool reference.
func (e *Engine) Close() {
	e.pool.Release()
}
