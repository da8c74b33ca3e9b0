package heap

import "fmt"

// DefaultChunkSize is the minimum number of bytes requested from Source on
// a miss, spec §4.1 ("CHUNKSIZE = 168 in the reference, chosen
// empirically; implementations may tune").
const DefaultChunkSize = 168

// Config tunes an Allocator. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	// ChunkSize is the minimum heap growth requested on an allocation
	// miss; the actual growth is max(adjustedSize, ChunkSize).
	ChunkSize int
	// VerifyAfterEachOp runs CheckHeap after every mutating call and
	// calls log.Fatal on the first violation found. Meant for tests and
	// debug builds, not hot-path production use (spec §4.2: "Invoked on
	// demand, typically guarded by a compile-time switch").
	VerifyAfterEachOp bool
}

// DefaultConfig returns the standard Config: DefaultChunkSize and no
// per-operation verification.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize}
}

// Allocator is a segregated free-list allocator over a Source-backed
// linear heap: boundary-tag blocks, 13 size-class free lists, first-fit
// placement, split-on-allocate, immediate bidirectional coalescing.
//
// Not safe for concurrent use: spec §5 requires the caller to serialize
// every entry point; the allocator performs no locking of its own.
type Allocator struct {
	src Source
	io  blockIO
	fl  freeList
	cfg Config
}

// New initializes a fresh heap on src and returns an Allocator over it.
// src must be empty (Hi() == Lo()); New performs the one Extend call that
// lays down the list-root region, the prologue, and the initial epilogue
// (spec §6.4).
func New(src Source, cfg Config) (*Allocator, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("heap: ChunkSize must be positive, got %d", cfg.ChunkSize)
	}
	if src.Hi() != src.Lo() {
		return nil, fmt.Errorf("heap: Source must be empty, got [%d,%d)", src.Lo(), src.Hi())
	}
	if _, ok := src.Extend(prefixSize + epilogueSize); !ok {
		return nil, fmt.Errorf("heap: initial Extend(%d) failed", prefixSize+epilogueSize)
	}

	a := &Allocator{src: src, io: blockIO{src: src}, cfg: cfg}
	a.fl = freeList{io: a.io}

	for c := 0; c < numClasses; c++ {
		a.fl.setHead(c, 0)
	}
	prologueOff := listRootsSize + prefixPad
	a.io.setBoth(prologueOff, prologueSize, true)
	a.writeEpilogue(prefixSize)
	return a, nil
}

// Bytes returns a slice view of n payload bytes starting at ptr, for
// reading or writing an allocation's contents. ptr must be a value
// returned by Alloc/Calloc/Realloc (not the null sentinel).
func (a *Allocator) Bytes(ptr, n int) []byte {
	return a.src.Bytes(ptr, n)
}

func (a *Allocator) epilogueOffset() int {
	return a.src.Hi() - epilogueSize
}

func (a *Allocator) writeEpilogue(off int) {
	a.io.setHeader(off, 0, true)
}

// Alloc returns a payload offset for size bytes, or 0 (the null
// sentinel) on ENOMEM or a zero-byte request, spec §4.1/§7.
func (a *Allocator) Alloc(size int) int {
	adjusted := adjustedSize(size)
	if adjusted == 0 {
		return 0
	}
	if blockOff, ok := a.findFit(adjusted); ok {
		p := a.place(blockOff, adjusted)
		a.maybeVerify()
		return p
	}

	extendBy := adjusted
	if extendBy < a.cfg.ChunkSize {
		extendBy = a.cfg.ChunkSize
	}
	if _, ok := a.extendHeap(extendBy); !ok {
		return 0
	}
	blockOff, ok := a.findFit(adjusted)
	if !ok {
		// Extension was sized to cover adjusted plus boundary-tag
		// overhead, so this should not happen outside pathological
		// Source behavior; treat as ENOMEM rather than panic.
		return 0
	}
	p := a.place(blockOff, adjusted)
	a.maybeVerify()
	return p
}

// Calloc returns a payload offset for n*m zeroed bytes, or 0 on ENOMEM.
func (a *Allocator) Calloc(n, m int) int {
	total := n * m
	p := a.Alloc(total)
	if p == 0 {
		return 0
	}
	buf := a.src.Bytes(p, total)
	for i := range buf {
		buf[i] = 0
	}
	return p
}

// Free releases the block at ptr. Free(0) is a no-op, spec §4.1/§7.
func (a *Allocator) Free(ptr int) {
	if ptr == 0 {
		return
	}
	blockOff := blockFromPayload(ptr)
	size, _ := a.io.header(blockOff)
	a.io.setBoth(blockOff, size, false)
	a.coalesce(blockOff)
	a.maybeVerify()
}

// Realloc resizes the block at ptr to size bytes, preserving
// bytes [0, min(old,new)), per spec §4.1.
func (a *Allocator) Realloc(ptr, size int) int {
	if ptr == 0 {
		return a.Alloc(size)
	}
	if size == 0 {
		a.Free(ptr)
		return 0
	}

	blockOff := blockFromPayload(ptr)
	old, _ := a.io.header(blockOff)
	newSize := adjustedSize(size)
	if newSize == old {
		return ptr
	}

	if newSize < old {
		if old-newSize >= MinBlockSize {
			a.io.setBoth(blockOff, newSize, true)
			remOff := blockOff + newSize
			a.io.setBoth(remOff, old-newSize, false)
			a.coalesce(remOff)
		}
		a.maybeVerify()
		return ptr
	}

	nextOff := blockOff + old
	nextSize, nextAlloc := a.io.header(nextOff)
	if !nextAlloc && nextSize > newSize-old {
		class := classForSize(nextSize)
		a.fl.remove(class, nextOff)
		if nextSize-(newSize-old) >= MinBlockSize {
			a.io.setBoth(blockOff, newSize, true)
			remOff := blockOff + newSize
			remSize := old + nextSize - newSize
			a.io.setBoth(remOff, remSize, false)
			a.coalesce(remOff)
		} else {
			a.io.setBoth(blockOff, old+nextSize, true)
		}
		a.maybeVerify()
		return ptr
	}

	newPtr := a.Alloc(size)
	if newPtr == 0 {
		return 0
	}
	copyLen := old - 2*wordSize
	if copyLen > size {
		copyLen = size
	}
	copy(a.src.Bytes(newPtr, copyLen), a.src.Bytes(ptr, copyLen))
	a.Free(ptr)
	return newPtr
}

// findFit scans classes from classForSize(need) upward, returning the
// first block whose size >= need within each class scanned head-to-tail
// (spec §4.1's first-fit).
func (a *Allocator) findFit(need int) (int, bool) {
	start := classForSize(need)
	for c := start; c < numClasses; c++ {
		found := 0
		a.fl.each(c, func(off int) bool {
			sz, _ := a.io.header(off)
			if sz >= need {
				found = off
				return false
			}
			return true
		})
		if found != 0 {
			return found, true
		}
	}
	return 0, false
}

// place removes a free block from its list and marks need bytes of it
// allocated, splitting off a free remainder when the surplus is worth
// keeping (spec §4.1 "place").
func (a *Allocator) place(blockOff, need int) int {
	size, _ := a.io.header(blockOff)
	class := classForSize(size)
	a.fl.remove(class, blockOff)

	if size-need >= MinBlockSize {
		a.io.setBoth(blockOff, need, true)
		remOff := blockOff + need
		a.io.setBoth(remOff, size-need, false)
		a.coalesce(remOff)
	} else {
		a.io.setBoth(blockOff, size, true)
	}
	return payloadOffset(blockOff)
}

// coalesce merges blockOff with any free neighbors and (re)inserts the
// resulting block into its class's free list, per spec §4.1's four
// coalesce cases. The prologue and epilogue sentinels are always
// allocated, so no boundary special-casing is needed here.
func (a *Allocator) coalesce(blockOff int) int {
	size, _ := a.io.header(blockOff)

	prevFtrSize, prevAlloc := a.io.header(blockOff - wordSize) // the left neighbor's footer word, read generically
	prevOff := blockOff - prevFtrSize
	nextOff := blockOff + size
	nextSize, nextAlloc := a.io.header(nextOff)

	switch {
	case prevAlloc && nextAlloc:
		class := classForSize(size)
		a.fl.insert(class, blockOff)
		return blockOff

	case prevAlloc && !nextAlloc:
		a.fl.remove(classForSize(nextSize), nextOff)
		newSize := size + nextSize
		a.io.setHeader(blockOff, newSize, false)
		a.io.setFooter(blockOff, newSize, false)
		a.fl.insert(classForSize(newSize), blockOff)
		return blockOff

	case !prevAlloc && nextAlloc:
		a.fl.remove(classForSize(prevFtrSize), prevOff)
		newSize := prevFtrSize + size
		a.io.setHeader(prevOff, newSize, false)
		a.io.setFooter(prevOff, newSize, false)
		a.fl.insert(classForSize(newSize), prevOff)
		return prevOff

	default: // both free
		a.fl.remove(classForSize(prevFtrSize), prevOff)
		a.fl.remove(classForSize(nextSize), nextOff)
		newSize := prevFtrSize + size + nextSize
		a.io.setHeader(prevOff, newSize, false)
		a.io.setFooter(prevOff, newSize, false)
		a.fl.insert(classForSize(newSize), prevOff)
		return prevOff
	}
}

// extendHeap grows the heap to host a new free block of at least
// minSize bytes, coalesces it with the previous tail block if that was
// free, and returns its (possibly merged) offset. Spec §4.1 "Heap
// extension".
func (a *Allocator) extendHeap(minSize int) (int, bool) {
	size := roundUp8(minSize)
	if size < MinBlockSize {
		size = MinBlockSize
	}

	oldEpilogueOff := a.epilogueOffset()
	if _, ok := a.src.Extend(size); !ok {
		return 0, false
	}

	a.io.setBoth(oldEpilogueOff, size, false)
	a.writeEpilogue(oldEpilogueOff + size)
	return a.coalesce(oldEpilogueOff), true
}

func (a *Allocator) maybeVerify() {
	if !a.cfg.VerifyAfterEachOp {
		return
	}
	a.MustCheckHeap(VerbositySilent)
}
