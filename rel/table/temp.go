package table

import "github.com/rowmill/rowmill/rel"

// TempTable is the append-only output target of an executor run. Emission
// goes through a reused scratch tuple: fill TempTuple, then InsertTemp
// snapshots it as a new row.
type TempTable struct {
	schema *rel.Schema
	rows   []*rel.Tuple
	temp   *rel.Tuple
}

// NewTempTable creates an empty temp table over the schema.
func NewTempTable(schema *rel.Schema) *TempTable {
	return &TempTable{schema: schema, temp: rel.NewTuple(schema)}
}

// Schema returns the output schema.
func (t *TempTable) Schema() *rel.Schema { return t.schema }

// TempTuple returns the reusable scratch row.
func (t *TempTable) TempTuple() *rel.Tuple { return t.temp }

// InsertTemp copies the scratch row into the table.
func (t *TempTable) InsertTemp() {
	t.rows = append(t.rows, t.temp.Clone())
}

// Len returns the number of emitted rows.
func (t *TempTable) Len() int { return len(t.rows) }

// Row returns the i-th emitted row.
func (t *TempTable) Row(i int) *rel.Tuple { return t.rows[i] }

// Iterator walks the emitted rows.
func (t *TempTable) Iterator() *Iterator { return &Iterator{rows: t.rows} }

// Reset drops all emitted rows, keeping the schema and scratch tuple.
func (t *TempTable) Reset() { t.rows = nil }
