// Package mempool provides the engine's goroutine-affine allocator: exact
// sized object pools for fixed-shape records and a relocating, compacting
// pool for variable-length payloads reached through a single registered
// reference. A Pool is not safe for concurrent use; a payload allocated on
// one goroutine must be freed on the same goroutine.
package mempool

import (
	"github.com/cockroachdb/errors"
	"github.com/google/btree"
)

// deferredItem identifies a tombstoned relocatable slot awaiting release,
// ordered by size class first and slot ordinal second.
type deferredItem struct {
	class int32
	pos   int
}

func deferredLess(a, b deferredItem) bool {
	if a.class != b.class {
		return a.class < b.class
	}
	return a.pos < b.pos
}

// Pool owns both allocation disciplines for one goroutine. It is reference
// counted: the last Release tears down all backing pages. Memory is never
// handed back while the pool is live.
type Pool struct {
	refs     int
	exact    map[int]*exactAllocator
	classes  map[int32]*compactingClass
	deferred bool
	tombs    *btree.BTreeG[deferredItem]
}

// New creates a pool holding one reference.
func New() *Pool {
	return &Pool{
		refs:    1,
		exact:   make(map[int]*exactAllocator),
		classes: make(map[int32]*compactingClass),
		tombs:   btree.NewG(16, deferredLess),
	}
}

// Retain adds a reference. Every holder on the goroutine's stack shares the
// same pool; teardown happens when the last one releases.
func (p *Pool) Retain() { p.refs++ }

// Release drops a reference. When the count reaches zero all size classes
// and their pages are discarded.
func (p *Pool) Release() {
	p.refs--
	if p.refs > 0 {
		return
	}
	p.exact = make(map[int]*exactAllocator)
	p.classes = make(map[int32]*compactingClass)
	p.tombs.Clear(false)
	p.deferred = false
}

// PoolAllocationSize returns the aggregate bytes currently reserved by every
// size class of both disciplines, including unused slack.
func (p *Pool) PoolAllocationSize() int64 {
	var total int64
	for _, a := range p.exact {
		total += a.reserved
	}
	for _, c := range p.classes {
		total += c.reserved
	}
	return total
}

// DeferRelease switches the pool to deferred release mode for a lexical
// region and returns the function restoring the prior mode:
//
//	restore := pool.DeferRelease()
//	defer restore()
//
// While deferred, FreeRelocatable only tombstones payloads. The restoring
// function, on the guard that flipped the mode, first reverts to immediate
// mode and then drains the tombstones per size class from highest slot to
// lowest so that hole-filling never moves a payload that is itself doomed.
// Nested guards are no-ops. The restore function must be called exactly once
// on every exit path; defer satisfies that.
func (p *Pool) DeferRelease() func() {
	if p.deferred {
		return func() {}
	}
	p.deferred = true
	return func() {
		if !p.deferred {
			return
		}
		p.deferred = false
		p.drainDeferred()
	}
}

// drainDeferred releases every tombstoned slot. Runs in immediate mode so
// each release compacts eagerly.
func (p *Pool) drainDeferred() {
	if p.tombs.Len() == 0 {
		return
	}
	items := make([]deferredItem, 0, p.tombs.Len())
	p.tombs.Ascend(func(it deferredItem) bool {
		items = append(items, it)
		return true
	})
	p.tombs.Clear(false)

	// items are sorted by (class, pos); walk each class run backwards
	for i := 0; i < len(items); {
		j := i
		for j < len(items) && items[j].class == items[i].class {
			j++
		}
		cls := p.classes[items[i].class]
		for k := j - 1; k >= i; k-- {
			cls.releaseSlot(items[k].pos)
		}
		i = j
	}
}

// assertOwned verifies that the reference's class belongs to this pool.
// Freeing through the wrong pool is a contract violation.
func (p *Pool) assertOwned(cls *compactingClass) error {
	if cls == nil {
		return errors.AssertionFailedf("relocatable reference is not live")
	}
	if p.classes[cls.slotSize] != cls {
		return errors.AssertionFailedf("relocatable reference belongs to a different pool")
	}
	return nil
}
