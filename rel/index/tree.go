// Package index provides the ordered in-memory index driven by the join
// executors. A TreeIndex supports equality and range positioning over a
// leading prefix of its key columns and forward or reverse iteration from
// either end.
package index

import (
	"math"

	"github.com/google/btree"

	"github.com/rowmill/rowmill/rel"
)

const btreeDegree = 32

// entry is one indexed row. Pivot entries, used only for seeking, carry a
// shortened key: a low pivot sorts before every real entry sharing its
// prefix, a high pivot after.
type entry struct {
	key       []rel.Value
	row       *rel.Tuple
	ord       uint64
	pivotHigh bool
}

func entryLess(a, b entry) bool {
	n := len(a.key)
	if len(b.key) < n {
		n = len(b.key)
	}
	for i := 0; i < n; i++ {
		if c := a.key[i].Compare(b.key[i]); c != 0 {
			return c < 0
		}
	}
	if len(a.key) != len(b.key) {
		if len(a.key) < len(b.key) {
			return !a.pivotHigh
		}
		return b.pivotHigh
	}
	return a.ord < b.ord
}

// TreeIndex is an ordered index over a table's rows. Positioning methods
// prime an internal cursor; NextValue and NextValueAtKey advance it. The
// cursor is single-owner: only one scan may be in flight at a time, and any
// positioning call discards the previous scan.
type TreeIndex struct {
	name      string
	keySchema *rel.Schema
	tree      *btree.BTreeG[entry]
	seq       uint64

	pivot     entry
	started   bool
	reverse   bool
	exhausted bool
	eqKey     []rel.Value
	eqActive  int
}

// NewTreeIndex creates an empty index with the given key schema.
func NewTreeIndex(name string, keySchema *rel.Schema) *TreeIndex {
	return &TreeIndex{
		name:      name,
		keySchema: keySchema,
		tree:      btree.NewG(btreeDegree, entryLess),
		exhausted: true,
	}
}

// Name returns the index name.
func (ix *TreeIndex) Name() string { return ix.name }

// KeySchema returns the schema of the index key columns.
func (ix *TreeIndex) KeySchema() *rel.Schema { return ix.keySchema }

// Len returns the number of indexed rows.
func (ix *TreeIndex) Len() int { return ix.tree.Len() }

// Insert indexes row under the given key values. Duplicate keys are kept in
// insertion order.
func (ix *TreeIndex) Insert(key []rel.Value, row *rel.Tuple) {
	ix.seq++
	k := make([]rel.Value, len(key))
	copy(k, key)
	ix.tree.ReplaceOrInsert(entry{key: k, row: row, ord: ix.seq})
}

func keyPrefix(key *rel.Tuple, active int) []rel.Value {
	vals := make([]rel.Value, active)
	for i := 0; i < active; i++ {
		vals[i] = key.Value(i)
	}
	return vals
}

// MoveToKey positions the cursor at the first row whose leading activeCols
// key columns equal the search key. Rows are consumed with NextValueAtKey.
func (ix *TreeIndex) MoveToKey(key *rel.Tuple, activeCols int) {
	prefix := keyPrefix(key, activeCols)
	ix.pivot = entry{key: prefix}
	ix.started = false
	ix.reverse = false
	ix.exhausted = false
	ix.eqKey = prefix
	ix.eqActive = activeCols
}

// MoveToGreaterThanKey positions the cursor past every row whose leading
// activeCols key columns compare less than or equal to the search key.
func (ix *TreeIndex) MoveToGreaterThanKey(key *rel.Tuple, activeCols int) {
	ix.pivot = entry{key: keyPrefix(key, activeCols), pivotHigh: true, ord: math.MaxUint64}
	ix.started = false
	ix.reverse = false
	ix.exhausted = false
	ix.eqKey = nil
}

// MoveToKeyOrGreater positions the cursor at the first row whose leading
// activeCols key columns compare greater than or equal to the search key.
func (ix *TreeIndex) MoveToKeyOrGreater(key *rel.Tuple, activeCols int) {
	ix.pivot = entry{key: keyPrefix(key, activeCols)}
	ix.started = false
	ix.reverse = false
	ix.exhausted = false
	ix.eqKey = nil
}

// MoveToEnd positions the cursor before the first row when toStart is true,
// or after the last row for a descending scan when false.
func (ix *TreeIndex) MoveToEnd(toStart bool) {
	if toStart {
		ix.pivot = entry{}
	} else {
		ix.pivot = entry{pivotHigh: true, ord: math.MaxUint64}
	}
	ix.started = false
	ix.reverse = !toStart
	ix.exhausted = false
	ix.eqKey = nil
}

// step advances past the current cursor position and returns the next entry
// in scan direction.
func (ix *TreeIndex) step() (entry, bool) {
	var out entry
	found := false
	visit := func(e entry) bool {
		if ix.started && e.ord == ix.pivot.ord {
			return true // skip the entry the cursor rests on
		}
		out = e
		found = true
		return false
	}
	if ix.reverse {
		ix.tree.DescendLessOrEqual(ix.pivot, visit)
	} else {
		ix.tree.AscendGreaterOrEqual(ix.pivot, visit)
	}
	if found {
		ix.pivot = out
		ix.started = true
	}
	return out, found
}

// NextValue returns the next row of the scan, or nil when the scan is done.
func (ix *TreeIndex) NextValue() *rel.Tuple {
	if ix.exhausted {
		return nil
	}
	e, ok := ix.step()
	if !ok {
		ix.exhausted = true
		return nil
	}
	return e.row
}

// NextValueAtKey returns the next row whose key prefix still equals the
// MoveToKey search key, or nil once the key run ends.
func (ix *TreeIndex) NextValueAtKey() *rel.Tuple {
	if ix.exhausted {
		return nil
	}
	e, ok := ix.step()
	if !ok || !ix.prefixMatches(e) {
		ix.exhausted = true
		return nil
	}
	return e.row
}

func (ix *TreeIndex) prefixMatches(e entry) bool {
	if ix.eqKey == nil {
		return false
	}
	for i := 0; i < ix.eqActive; i++ {
		if e.key[i].Compare(ix.eqKey[i]) != 0 {
			return false
		}
	}
	return true
}
