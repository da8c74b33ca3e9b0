package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(NewArena(), DefaultConfig())
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"custom chunk", Config{ChunkSize: 4096}, false},
		{"zero chunk", Config{ChunkSize: 0}, true},
		{"negative chunk", Config{ChunkSize: -8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(NewArena(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, a.CheckHeap(VerbositySilent))
		})
	}
}

func TestNewRejectsNonEmptySource(t *testing.T) {
	src := NewArena()
	src.Extend(8)
	_, err := New(src, DefaultConfig())
	assert.Error(t, err)
}

func TestAllocZeroIsNull(t *testing.T) {
	a := newTestAllocator(t)
	assert.Equal(t, 0, a.Alloc(0))
}

func TestFreeNullIsNoop(t *testing.T) {
	a := newTestAllocator(t)
	a.Free(0) // must not panic
	assert.NoError(t, a.CheckHeap(VerbositySilent))
}

// TestAllocSplit is the split scenario: two adjacent small allocations
// land exactly one block apart.
func TestAllocSplit(t *testing.T) {
	a := newTestAllocator(t)
	p1 := a.Alloc(24)
	p2 := a.Alloc(24)
	require.NotEqual(t, 0, p1)
	require.NotEqual(t, 0, p2)
	assert.Equal(t, 32, p2-p1)
	assert.NoError(t, a.CheckHeap(VerbositySilent))
}

// TestAllocCoalesce frees three neighboring blocks out of order and
// expects them to merge into a single free block at least as large as
// their sum.
func TestAllocCoalesce(t *testing.T) {
	a := newTestAllocator(t)
	p1 := a.Alloc(100)
	p2 := a.Alloc(100)
	p3 := a.Alloc(100)

	before := a.Stats()
	a.Free(p1)
	a.Free(p3)
	a.Free(p2)
	after := a.Stats()

	assert.GreaterOrEqual(t, after.FreeBytes-before.FreeBytes, 3*adjustedSize(100))
	assert.NoError(t, a.CheckHeap(VerbositySilent))

	// the merged block starts where p1's block started
	merged := blockFromPayload(p1)
	size, alloc := a.io.header(merged)
	assert.False(t, alloc)
	assert.GreaterOrEqual(t, size, 3*adjustedSize(100))
}

func TestAllocCalloc(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Calloc(10, 4)
	require.NotEqual(t, 0, p)
	buf := a.Bytes(p, 40)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

// TestReallocShrinkInPlace exercises the in-place shrink path: the
// pointer returned must be unchanged and the freed tail merges back in.
func TestReallocShrinkInPlace(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Alloc(200)
	require.NotEqual(t, 0, p)
	before := a.Stats()

	q := a.Realloc(p, 40)
	assert.Equal(t, p, q)

	after := a.Stats()
	assert.Greater(t, after.FreeBytes, before.FreeBytes)
	assert.NoError(t, a.CheckHeap(VerbositySilent))
}

// TestReallocGrowIntoFreeNeighbor exercises growing in place by
// absorbing a following free block without copying.
func TestReallocGrowIntoFreeNeighbor(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Alloc(100)
	q := a.Alloc(100)
	require.NotEqual(t, 0, p)
	require.NotEqual(t, 0, q)
	a.Free(q)

	r := a.Realloc(p, 180)
	assert.Equal(t, p, r)
	assert.NoError(t, a.CheckHeap(VerbositySilent))
}

// TestReallocCopiesWhenNoRoom forces the copy path by leaving both
// neighbors allocated.
func TestReallocCopiesWhenNoRoom(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Alloc(100)
	_ = a.Alloc(100) // keeps p's right neighbor allocated
	buf := a.Bytes(p, 100)
	for i := range buf {
		buf[i] = byte(i)
	}

	q := a.Realloc(p, 500)
	require.NotEqual(t, 0, q)
	got := a.Bytes(q, 100)
	for i := range got {
		assert.Equal(t, byte(i), got[i])
	}
	assert.NoError(t, a.CheckHeap(VerbositySilent))
}

func TestReallocNullActsLikeAlloc(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Realloc(0, 64)
	assert.NotEqual(t, 0, p)
}

func TestReallocZeroSizeActsLikeFree(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Alloc(64)
	before := a.Stats()
	q := a.Realloc(p, 0)
	assert.Equal(t, 0, q)
	assert.Greater(t, a.Stats().FreeBytes, before.FreeBytes)
}

func TestReallocSameAdjustedSizeIsNoop(t *testing.T) {
	a := newTestAllocator(t)
	p := a.Alloc(8)
	q := a.Realloc(p, 16) // both adjust to MinBlockSize
	assert.Equal(t, p, q)
}

// TestAllocENOMEM exercises the ENOMEM path using a Source that refuses
// to grow past a fixed cap.
func TestAllocENOMEM(t *testing.T) {
	a, err := New(&boundedArena{cap: 256}, Config{ChunkSize: 64})
	require.NoError(t, err)

	var last int
	for i := 0; i < 1000; i++ {
		p := a.Alloc(64)
		if p == 0 {
			break
		}
		last = p
	}
	assert.NotEqual(t, 0, last, "at least one allocation should have succeeded before ENOMEM")
	assert.Equal(t, 0, a.Alloc(64))
}

// boundedArena wraps Arena and refuses Extend once the backing buffer
// would grow past cap, to exercise the allocator's ENOMEM path.
type boundedArena struct {
	Arena
	cap int
}

func (b *boundedArena) Extend(nbytes int) (int, bool) {
	if b.Hi()+nbytes > b.cap {
		return 0, false
	}
	return b.Arena.Extend(nbytes)
}

func TestStatsAccounting(t *testing.T) {
	a := newTestAllocator(t)
	s0 := a.Stats()
	assert.Equal(t, 0, s0.AllocatedBytes)

	p := a.Alloc(100)
	require.NotEqual(t, 0, p)
	s1 := a.Stats()
	assert.Equal(t, adjustedSize(100), s1.AllocatedBytes)

	a.Free(p)
	s2 := a.Stats()
	assert.Equal(t, 0, s2.AllocatedBytes)
}

func TestVerifyAfterEachOp(t *testing.T) {
	a, err := New(NewArena(), Config{ChunkSize: DefaultChunkSize, VerifyAfterEachOp: true})
	require.NoError(t, err)
	p := a.Alloc(64)
	a.Free(p)
}
