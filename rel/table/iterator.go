package table

import "github.com/rowmill/rowmill/rel"

// Iterator walks a table's rows in insertion order.
//
//	it := t.Iterator()
//	defer it.Close()
//	for it.Next() {
//	    row := it.Tuple()
//	}
//
// Not safe for concurrent use; each caller creates its own iterator.
type Iterator struct {
	rows   []*rel.Tuple
	i      int
	cur    *rel.Tuple
	closed bool
}

// Next advances to the next row, returning false when exhausted.
func (it *Iterator) Next() bool {
	if it.closed || it.i >= len(it.rows) {
		return false
	}
	it.cur = it.rows[it.i]
	it.i++
	return true
}

// Tuple returns the current row.
func (it *Iterator) Tuple() *rel.Tuple { return it.cur }

// Close releases the iterator.
func (it *Iterator) Close() error {
	it.closed = true
	return nil
}
