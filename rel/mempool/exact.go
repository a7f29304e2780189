package mempool

import (
	"github.com/cockroachdb/errors"
)

const (
	initialPageBytes = 4 * 1024
	maxPageBytes     = 2 * 1024 * 1024
	largeObjectBytes = 256 * 1024
)

// exactAllocator hands out blocks of one exact size, carved from a list of
// growing pages. Returned blocks go on a free list and are reused before any
// new page is touched.
type exactAllocator struct {
	objectSize int
	pages      [][]byte
	offset     int // into the newest page
	nextPage   int
	freeList   [][]byte
	reserved   int64
	live       int
}

func newExactAllocator(size int) *exactAllocator {
	first := initialPageBytes
	if size > largeObjectBytes {
		// oversized objects get two-object pages instead of the doubling
		// schedule
		first = 2 * size
	} else {
		for first < size {
			first *= 2
		}
	}
	return &exactAllocator{objectSize: size, nextPage: first}
}

func (a *exactAllocator) allocate() []byte {
	if n := len(a.freeList); n > 0 {
		blk := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		a.live++
		return blk
	}
	if len(a.pages) == 0 || a.offset+a.objectSize > len(a.pages[len(a.pages)-1]) {
		a.grow()
	}
	page := a.pages[len(a.pages)-1]
	blk := page[a.offset : a.offset+a.objectSize : a.offset+a.objectSize]
	a.offset += a.objectSize
	a.live++
	return blk
}

func (a *exactAllocator) grow() {
	size := a.nextPage
	a.pages = append(a.pages, make([]byte, size))
	a.offset = 0
	a.reserved += int64(size)
	if a.objectSize > largeObjectBytes {
		return // stays at two objects per page
	}
	if next := size * 2; next <= maxPageBytes {
		a.nextPage = next
	} else {
		a.nextPage = maxPageBytes
	}
}

func (a *exactAllocator) free(blk []byte) {
	a.freeList = append(a.freeList, blk)
	a.live--
}

// AllocateExactSized returns a block of exactly size bytes from the pool of
// same-sized objects, creating the size class on first use. The block's
// contents are unspecified.
func (p *Pool) AllocateExactSized(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.AssertionFailedf("exact-sized allocation of %d bytes", size)
	}
	a, ok := p.exact[size]
	if !ok {
		a = newExactAllocator(size)
		p.exact[size] = a
	}
	return a.allocate(), nil
}

// FreeExactSized returns a block obtained from AllocateExactSized. The size
// must be the size passed at allocation; a size that never produced an
// allocation is detected as a contract violation.
func (p *Pool) FreeExactSized(size int, blk []byte) error {
	a, ok := p.exact[size]
	if !ok {
		return errors.AssertionFailedf("free of unknown exact size class %d", size)
	}
	if len(blk) != size {
		return errors.AssertionFailedf("freeing block of %d bytes as size class %d", len(blk), size)
	}
	a.free(blk)
	return nil
}

// ExactLiveCount reports the number of outstanding exact-sized blocks, used
// by leak checks at teardown.
func (p *Pool) ExactLiveCount() int {
	total := 0
	for _, a := range p.exact {
		total += a.live
	}
	return total
}
