// Package table holds the in-memory table layer: persistent tables with
// named indexes, temp output tables, and the iterator contract shared by
// both.
package table

import (
	"fmt"

	"github.com/rowmill/rowmill/rel"
	"github.com/rowmill/rowmill/rel/index"
	"github.com/rowmill/rowmill/rel/mempool"
)

// Table is an in-memory table with an optional set of named tree indexes.
// When constructed with a pool, the VARCHAR cells of stored rows live in
// relocatable pool storage reached through string references, so the table
// must be dropped on the goroutine that fed it.
type Table struct {
	name    string
	schema  *rel.Schema
	rows    []*rel.Tuple
	indexes map[string]*index.TreeIndex
	keyCols map[*index.TreeIndex][]int
	pool    *mempool.Pool
}

// NewTable creates a table whose VARCHAR cells stay on the Go heap.
func NewTable(name string, schema *rel.Schema) *Table {
	return &Table{
		name:    name,
		schema:  schema,
		indexes: make(map[string]*index.TreeIndex),
	}
}

// NewPooledTable creates a table backing VARCHAR cells with pool storage.
func NewPooledTable(name string, schema *rel.Schema, pool *mempool.Pool) *Table {
	t := NewTable(name, schema)
	t.pool = pool
	return t
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the table schema.
func (t *Table) Schema() *rel.Schema { return t.schema }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) *rel.Tuple { return t.rows[i] }

// Insert appends a row built from the given values, casting each to its
// column's declared type and maintaining every index. With a pool attached,
// VARCHAR payloads are copied into relocatable storage.
func (t *Table) Insert(values ...rel.Value) error {
	if len(values) != t.schema.Len() {
		return fmt.Errorf("table %s: %d values for %d columns", t.name, len(values), t.schema.Len())
	}
	row := rel.NewTuple(t.schema)
	for i, v := range values {
		if err := row.SetTyped(i, v); err != nil {
			return fmt.Errorf("table %s column %d: %w", t.name, i, err)
		}
		if t.pool != nil && t.schema.Column(i).Type == rel.Varchar && !row.Value(i).IsNull() {
			pooled, err := t.internVarchar(row.Value(i).Bytes())
			if err != nil {
				return err
			}
			row.Set(i, pooled)
		}
	}
	t.rows = append(t.rows, row)
	for _, ix := range t.indexes {
		ix.Insert(t.keyFor(ix, row), row)
	}
	return nil
}

func (t *Table) internVarchar(b []byte) (rel.Value, error) {
	ref := &mempool.StringRef{}
	if err := t.pool.AllocateRelocatable(ref, int32(len(b))); err != nil {
		return rel.Value{}, err
	}
	copy(ref.Bytes(), b)
	return rel.NewPooledVarchar(ref), nil
}

// CreateIndex builds a named index over the given column positions and
// loads every existing row into it.
func (t *Table) CreateIndex(name string, cols []int) (*index.TreeIndex, error) {
	if _, ok := t.indexes[name]; ok {
		return nil, fmt.Errorf("table %s: index %q already exists", t.name, name)
	}
	keyCols := make([]rel.Column, len(cols))
	for i, c := range cols {
		if c < 0 || c >= t.schema.Len() {
			return nil, fmt.Errorf("table %s: index column %d out of range", t.name, c)
		}
		keyCols[i] = t.schema.Column(c)
	}
	ix := index.NewTreeIndex(name, rel.NewSchema(keyCols...))
	t.indexes[name] = ix
	t.indexCols(ix, cols)
	for _, row := range t.rows {
		ix.Insert(t.keyFor(ix, row), row)
	}
	return ix, nil
}

func (t *Table) indexCols(ix *index.TreeIndex, cols []int) {
	if t.keyCols == nil {
		t.keyCols = make(map[*index.TreeIndex][]int)
	}
	t.keyCols[ix] = append([]int(nil), cols...)
}

func (t *Table) keyFor(ix *index.TreeIndex, row *rel.Tuple) []rel.Value {
	cols := t.keyCols[ix]
	key := make([]rel.Value, len(cols))
	for i, c := range cols {
		key[i] = row.Value(c)
	}
	return key
}

// Index returns the named index, or nil if missing.
func (t *Table) Index(name string) *index.TreeIndex { return t.indexes[name] }

// Iterator returns a forward iterator over the table's rows.
func (t *Table) Iterator() *Iterator { return &Iterator{rows: t.rows} }

// DeleteAll drops every row, releasing pooled VARCHAR storage. The frees run
// under a deferred-release guard so bulk deletion avoids pointless
// hole-filling copies.
func (t *Table) DeleteAll() error {
	if t.pool != nil {
		restore := t.pool.DeferRelease()
		defer restore()
		for _, row := range t.rows {
			if err := t.freeRowRefs(row); err != nil {
				return err
			}
		}
	}
	t.rows = nil
	for name := range t.indexes {
		cols := t.keyCols[t.indexes[name]]
		ix := index.NewTreeIndex(name, t.indexes[name].KeySchema())
		t.indexes[name] = ix
		t.indexCols(ix, cols)
	}
	return nil
}

func (t *Table) freeRowRefs(row *rel.Tuple) error {
	for i := 0; i < row.Len(); i++ {
		v := row.Value(i)
		if ref, ok := refOf(v); ok {
			if err := t.pool.FreeRelocatable(ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func refOf(v rel.Value) (*mempool.StringRef, bool) {
	src, ok := v.Source().(*mempool.StringRef)
	return src, ok && src != nil
}
