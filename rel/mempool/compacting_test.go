package mempool

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(ref *StringRef, b byte) {
	data := ref.Bytes()
	for i := range data {
		data[i] = b
	}
}

func assertFilled(t *testing.T, ref *StringRef, b byte, size int) {
	t.Helper()
	require.True(t, ref.Valid())
	data := ref.Bytes()
	require.Len(t, data, size)
	assert.True(t, bytes.Equal(data, bytes.Repeat([]byte{b}, size)),
		"payload bytes survived relocation")
}

func TestRelocatableRoundTrip(t *testing.T) {
	p := New()
	defer p.Release()

	ref := &StringRef{}
	require.NoError(t, p.AllocateRelocatable(ref, 40))
	assert.EqualValues(t, 40, ref.Size())
	fill(ref, 0x5A)

	cls, err := p.AllocationSizeForRelocatable(ref)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cls, int32(44), "class covers prefix plus payload")

	require.NoError(t, p.FreeRelocatable(ref))
	assert.False(t, ref.Valid())
	assert.Equal(t, 0, p.RelocatableLiveCount())
}

// The hole-filling scenario: freeing the middle of three same-class payloads
// moves the tail into the hole and rewrites only the tail owner's reference.
func TestRelocatableHoleFillMovesTail(t *testing.T) {
	p := New()
	defer p.Release()

	a, b, c := &StringRef{}, &StringRef{}, &StringRef{}
	for i, ref := range []*StringRef{a, b, c} {
		require.NoError(t, p.AllocateRelocatable(ref, 32))
		fill(ref, byte('A'+i))
	}

	require.NoError(t, p.FreeRelocatable(b))

	assertFilled(t, a, 'A', 32)
	assertFilled(t, c, 'C', 32)
	assert.Equal(t, 2, p.RelocatableLiveCount())
}

func TestRelocatableFreeTailNoCopy(t *testing.T) {
	p := New()
	defer p.Release()

	a, b := &StringRef{}, &StringRef{}
	require.NoError(t, p.AllocateRelocatable(a, 32))
	require.NoError(t, p.AllocateRelocatable(b, 32))
	fill(a, 'A')
	fill(b, 'B')

	aBefore := &a.data[0]
	require.NoError(t, p.FreeRelocatable(b))
	assert.Same(t, aBefore, &a.data[0], "freeing the tail must not move survivors")
	assertFilled(t, a, 'A', 32)
}

// Relocation correctness: after an arbitrary allocate/free sequence every
// surviving reference reads back its own bytes and its recorded size.
func TestRelocatableManyAllocationsSurviveCompaction(t *testing.T) {
	p := New()
	defer p.Release()

	const n = 200
	refs := make([]*StringRef, n)
	for i := range refs {
		refs[i] = &StringRef{}
		size := int32(10 + (i%5)*30)
		require.NoError(t, p.AllocateRelocatable(refs[i], size))
		fill(refs[i], byte(i))
	}

	// free every third payload, compacting as we go
	for i := 0; i < n; i += 3 {
		require.NoError(t, p.FreeRelocatable(refs[i]))
		refs[i] = nil
	}

	for i, ref := range refs {
		if ref == nil {
			continue
		}
		size := 10 + (i%5)*30
		assertFilled(t, ref, byte(i), size)
		assert.EqualValues(t, size, ref.Size())
	}
}

// Size-class closure: compaction inside one class never disturbs another.
func TestRelocatableSizeClassIsolation(t *testing.T) {
	p := New()
	defer p.Release()

	small := make([]*StringRef, 8)
	large := make([]*StringRef, 8)
	for i := range small {
		small[i] = &StringRef{}
		require.NoError(t, p.AllocateRelocatable(small[i], 20))
		fill(small[i], byte(i))
		large[i] = &StringRef{}
		require.NoError(t, p.AllocateRelocatable(large[i], 2000))
		fill(large[i], byte(0x80+i))
	}

	for i := 0; i < 8; i += 2 {
		require.NoError(t, p.FreeRelocatable(small[i]))
	}

	for i := range large {
		assertFilled(t, large[i], byte(0x80+i), 2000)
		cls, err := p.AllocationSizeForRelocatable(large[i])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, cls, int32(2004))
	}
	for i := 1; i < 8; i += 2 {
		cls, err := p.AllocationSizeForRelocatable(small[i])
		require.NoError(t, err)
		assert.LessOrEqual(t, cls, int32(64))
	}
}

func TestRelocatableSizeCeiling(t *testing.T) {
	p := New()
	defer p.Release()

	ref := &StringRef{}
	err := p.AllocateRelocatable(ref, MaxRelocatableUserSize+1)
	require.Error(t, err, "requests above the ceiling are fatal")
	assert.False(t, ref.Valid())

	require.NoError(t, p.AllocateRelocatable(ref, MaxRelocatableUserSize))
	require.NoError(t, p.FreeRelocatable(ref))
}

func TestRelocatableDoubleFree(t *testing.T) {
	p := New()
	defer p.Release()

	ref := &StringRef{}
	require.NoError(t, p.AllocateRelocatable(ref, 16))
	require.NoError(t, p.FreeRelocatable(ref))
	assert.Error(t, p.FreeRelocatable(ref))
}

func TestRelocatableForeignPoolFree(t *testing.T) {
	p1 := New()
	defer p1.Release()
	p2 := New()
	defer p2.Release()

	ref := &StringRef{}
	require.NoError(t, p1.AllocateRelocatable(ref, 16))
	assert.Error(t, p2.FreeRelocatable(ref), "freeing through the wrong pool is detected")
	require.NoError(t, p1.FreeRelocatable(ref))
}

func TestRelocatablePageReuse(t *testing.T) {
	p := New()
	defer p.Release()

	refs := make([]*StringRef, 0, 5000)
	for i := 0; i < 5000; i++ {
		ref := &StringRef{}
		require.NoError(t, p.AllocateRelocatable(ref, 100))
		refs = append(refs, ref)
	}
	reserved := p.PoolAllocationSize()

	for _, ref := range refs {
		require.NoError(t, p.FreeRelocatable(ref))
	}
	assert.Equal(t, 0, p.RelocatableLiveCount())
	assert.Equal(t, reserved, p.PoolAllocationSize(),
		"pages are retained by the pool, not returned")

	// the vacated pages satisfy a fresh burst without growing the pool
	for i := 0; i < 5000; i++ {
		ref := &StringRef{}
		require.NoError(t, p.AllocateRelocatable(ref, 100))
	}
	assert.Equal(t, reserved, p.PoolAllocationSize())
}

func TestRelocatableStress(t *testing.T) {
	p := New()
	defer p.Release()

	live := map[int]*StringRef{}
	content := map[int]byte{}
	next := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 20; i++ {
			ref := &StringRef{}
			size := int32(8 + (next%7)*17)
			require.NoError(t, p.AllocateRelocatable(ref, size))
			fill(ref, byte(next%251))
			live[next] = ref
			content[next] = byte(next % 251)
			next++
		}
		for id, ref := range live {
			if id%3 == round%3 {
				require.NoError(t, p.FreeRelocatable(ref))
				delete(live, id)
				delete(content, id)
			}
		}
		for id, ref := range live {
			size := 8 + (id%7)*17
			if !bytes.Equal(ref.Bytes(), bytes.Repeat([]byte{content[id]}, size)) {
				t.Fatalf("round %d: payload %d corrupted", round, id)
			}
		}
	}
	assert.Equal(t, len(live), p.RelocatableLiveCount())
}

func TestClassSize(t *testing.T) {
	cases := []struct {
		total int32
		class int32
	}{
		{1, 16},
		{16, 16},
		{17, 32},
		{100, 128},
		{4096, 4096},
		{4097, 8192},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.total), func(t *testing.T) {
			assert.Equal(t, tc.class, classSize(tc.total))
		})
	}
}
