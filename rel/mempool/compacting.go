package mempool

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	// sizePrefixBytes is the mandatory prefix in front of every relocatable
	// payload carrying the user-requested size.
	sizePrefixBytes = 4

	// MaxRelocatableUserSize is the ceiling on a single relocatable
	// allocation. Requests above it are a fatal condition the caller is
	// expected to guard against.
	MaxRelocatableUserSize = 1<<20 + 12

	minSlotBytes        = 16
	compactingPageBytes = 256 * 1024
)

// StringRef is the single persistent reference to a relocatable payload.
// The pool rewrites its storage view without notice when the payload is
// relocated to fill a hole, so callers must always reach the bytes through
// Bytes. A StringRef must not be copied after registration.
type StringRef struct {
	_    noCopy
	cls  *compactingClass
	pos  int
	data []byte // size prefix + user bytes, a view into the owning slot
}

// Bytes returns the payload's user bytes at their current location. The
// slice is invalidated by any subsequent pool operation.
func (r *StringRef) Bytes() []byte {
	return r.data[sizePrefixBytes:]
}

// Size returns the user-requested size recorded in the payload prefix.
func (r *StringRef) Size() int32 {
	return int32(binary.LittleEndian.Uint32(r.data[:sizePrefixBytes]))
}

// Valid reports whether the reference currently owns a payload.
func (r *StringRef) Valid() bool { return r.cls != nil }

// compactingClass keeps every live payload of one rounded-up footprint in a
// contiguous run of fixed-width slots across its pages. Slot i of the run is
// owned by refs[i]; the tail of the run is the relocation source when a hole
// opens below it.
type compactingClass struct {
	slotSize     int32
	slotsPerPage int
	pages        [][]byte
	freePages    [][]byte
	refs         []*StringRef
	reserved     int64
}

func newCompactingClass(slotSize int32) *compactingClass {
	per := compactingPageBytes / int(slotSize)
	if per < 1 {
		per = 1
	}
	return &compactingClass{slotSize: slotSize, slotsPerPage: per}
}

// classSize rounds a total footprint (prefix included) up to its size class.
// Classes are powers of two so that any two payloads of a class occupy equal
// storage and are interchangeable for relocation.
func classSize(total int32) int32 {
	size := int32(minSlotBytes)
	for size < total {
		size *= 2
	}
	return size
}

func (c *compactingClass) slot(pos int) []byte {
	page := c.pages[pos/c.slotsPerPage]
	off := (pos % c.slotsPerPage) * int(c.slotSize)
	return page[off : off+int(c.slotSize) : off+int(c.slotSize)]
}

func (c *compactingClass) allocate(ref *StringRef, size int32) {
	pos := len(c.refs)
	if pos/c.slotsPerPage == len(c.pages) {
		if n := len(c.freePages); n > 0 {
			c.pages = append(c.pages, c.freePages[n-1])
			c.freePages = c.freePages[:n-1]
		} else {
			c.pages = append(c.pages, make([]byte, c.slotsPerPage*int(c.slotSize)))
			c.reserved += int64(c.slotsPerPage) * int64(c.slotSize)
		}
	}
	slot := c.slot(pos)
	binary.LittleEndian.PutUint32(slot[:sizePrefixBytes], uint32(size))
	ref.cls = c
	ref.pos = pos
	ref.data = slot[:sizePrefixBytes+int(size)]
	c.refs = append(c.refs, ref)
}

// releaseSlot frees the payload at pos, keeping the run contiguous by moving
// the tail payload into the hole and retargeting the tail owner's reference.
// No copy happens when pos is the tail itself.
func (c *compactingClass) releaseSlot(pos int) {
	tail := len(c.refs) - 1
	if pos != tail {
		moved := c.refs[tail]
		src := c.slot(tail)
		dst := c.slot(pos)
		copy(dst, src[:len(moved.data)])
		moved.pos = pos
		moved.data = dst[:len(moved.data)]
		c.refs[pos] = moved
	}
	c.refs[tail] = nil
	c.refs = c.refs[:tail]

	// a fully vacated trailing page goes back on the class's free list
	for len(c.pages) > 0 && len(c.refs) <= (len(c.pages)-1)*c.slotsPerPage {
		last := len(c.pages) - 1
		c.freePages = append(c.freePages, c.pages[last])
		c.pages = c.pages[:last]
	}
}

// AllocateRelocatable carves a payload of size user bytes from the matching
// size class and registers ref as its single persistent reference. The pool
// may later rewrite ref's view when compaction relocates the payload. A size
// above MaxRelocatableUserSize is a fatal condition.
func (p *Pool) AllocateRelocatable(ref *StringRef, size int32) error {
	if size < 0 || size > MaxRelocatableUserSize {
		return errors.AssertionFailedf(
			"relocatable allocation of %d bytes exceeds the %d byte ceiling",
			size, int32(MaxRelocatableUserSize))
	}
	if ref.Valid() {
		return errors.AssertionFailedf("reference already owns a payload")
	}
	cls := classSize(size + sizePrefixBytes)
	c, ok := p.classes[cls]
	if !ok {
		c = newCompactingClass(cls)
		p.classes[cls] = c
	}
	c.allocate(ref, size)
	return nil
}

// FreeRelocatable releases the payload owned by ref. In immediate mode the
// class compacts eagerly; in deferred mode the slot is tombstoned and
// reclaimed when the mode reverts. Either way ref no longer owns a payload
// when the call returns.
func (p *Pool) FreeRelocatable(ref *StringRef) error {
	if err := p.assertOwned(ref.cls); err != nil {
		return err
	}
	c, pos := ref.cls, ref.pos
	ref.cls = nil
	ref.data = nil
	if p.deferred {
		p.tombs.ReplaceOrInsert(deferredItem{class: c.slotSize, pos: pos})
		return nil
	}
	c.releaseSlot(pos)
	return nil
}

// AllocationSizeForRelocatable returns the rounded-up footprint reserved for
// the payload, prefix included.
func (p *Pool) AllocationSizeForRelocatable(ref *StringRef) (int32, error) {
	if err := p.assertOwned(ref.cls); err != nil {
		return 0, err
	}
	return ref.cls.slotSize, nil
}

// RelocatableLiveCount reports live relocatable payloads, tombstoned slots
// excluded.
func (p *Pool) RelocatableLiveCount() int {
	total := 0
	for _, c := range p.classes {
		total += len(c.refs)
	}
	return total - p.tombs.Len()
}

// noCopy triggers go vet's copylocks check on types embedding it.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
