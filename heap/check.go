package heap

import (
	"fmt"
	"log"
)

// Verbosity controls how much CheckHeap logs while it runs. It never
// changes what is checked, only what gets written to the diagnostic sink.
type Verbosity int

const (
	// VerbositySilent runs all checks and reports only the first
	// violation found, if any.
	VerbositySilent Verbosity = iota
	// VerbosityVerbose additionally logs each check step as it passes,
	// via the standard log package.
	VerbosityVerbose
)

func (v Verbosity) logStep(format string, args ...interface{}) {
	if v == VerbosityVerbose {
		log.Printf("heap: check: "+format, args...)
	}
}

// CheckHeap walks the heap's structure and free lists, verifying every
// invariant in spec §3/§4.2, and returns the first violation found (or
// nil). It never panics or exits the process on its own; callers that
// want the reference's "fatal errors terminate the process" behavior for
// a detected corruption (a programming bug, not a runtime condition) use
// MustCheckHeap instead.
func (a *Allocator) CheckHeap(v Verbosity) error {
	if err := a.checkPrefix(v); err != nil {
		return err
	}
	if err := a.checkSentinels(v); err != nil {
		return err
	}
	walkCount, err := a.checkBlockWalk(v)
	if err != nil {
		return err
	}
	if err := a.checkCycles(v); err != nil {
		return err
	}
	listCount, err := a.checkFreeLists(v)
	if err != nil {
		return err
	}
	if walkCount != listCount {
		return fmt.Errorf("heap: free block count mismatch: heap walk found %d, free-list walk found %d", walkCount, listCount)
	}
	v.logStep("ok (%d free blocks)", walkCount)
	return nil
}

// MustCheckHeap is CheckHeap followed by log.Fatal on the first
// violation — the "fatal error, programming bug, terminate the process"
// register spec §4.2/§7 describes for checker-detected corruption.
func (a *Allocator) MustCheckHeap(v Verbosity) {
	if err := a.CheckHeap(v); err != nil {
		log.Fatalf("heap: corruption detected: %v", err)
	}
}

// checkPrefix is spec §4.2 step 1: the list-root region is aligned and
// contained in the heap.
func (a *Allocator) checkPrefix(v Verbosity) error {
	if listRootsSize%doubleWord != 0 {
		return fmt.Errorf("heap: list-root region size %d not 8-aligned", listRootsSize)
	}
	if a.src.Lo() != 0 || prefixSize > a.src.Hi() {
		return fmt.Errorf("heap: list-root/prologue region [0,%d) not contained in heap [%d,%d)", prefixSize, a.src.Lo(), a.src.Hi())
	}
	v.logStep("list-root region ok")
	return nil
}

// checkSentinels is spec §4.2 step 2.
func (a *Allocator) checkSentinels(v Verbosity) error {
	prologueOff := listRootsSize + prefixPad
	size, alloc := a.io.header(prologueOff)
	if size != prologueSize || !alloc {
		return fmt.Errorf("heap: bad prologue at %d: size=%d alloc=%v", prologueOff, size, alloc)
	}
	fsize, falloc := a.io.footer(prologueOff, prologueSize)
	if fsize != size || falloc != alloc {
		return fmt.Errorf("heap: prologue header/footer mismatch at %d", prologueOff)
	}

	epOff := a.epilogueOffset()
	esize, ealloc := a.io.header(epOff)
	if esize != 0 || !ealloc {
		return fmt.Errorf("heap: bad epilogue at %d: size=%d alloc=%v", epOff, esize, ealloc)
	}
	v.logStep("prologue/epilogue ok")
	return nil
}

// checkBlockWalk is spec §4.2 step 3: walk every regular block via
// next-block arithmetic, running per-block and coalesce checks, and
// return how many free blocks were found.
func (a *Allocator) checkBlockWalk(v Verbosity) (int, error) {
	lo, hi := a.src.Lo(), a.src.Hi()
	epOff := a.epilogueOffset()
	freeCount := 0

	for off := prefixSize; off < epOff; {
		size, alloc := a.io.header(off)
		if off < lo || off >= hi {
			return 0, fmt.Errorf("heap: block at %d out of heap bounds [%d,%d)", off, lo, hi)
		}
		if (off+wordSize)%doubleWord != 0 {
			return 0, fmt.Errorf("heap: block at %d has misaligned payload", off)
		}
		if size < MinBlockSize {
			return 0, fmt.Errorf("heap: block at %d has size %d < MinBlockSize %d", off, size, MinBlockSize)
		}
		if off+size > epOff {
			return 0, fmt.Errorf("heap: block at %d (size %d) overruns epilogue at %d", off, size, epOff)
		}
		fsize, falloc := a.io.footer(off, size)
		if fsize != size || falloc != alloc {
			return 0, fmt.Errorf("heap: block at %d header(%d,%v) != footer(%d,%v)", off, size, alloc, fsize, falloc)
		}
		if !alloc {
			freeCount++
			_, prevAlloc := a.io.header(off - wordSize)
			_, nextAlloc := a.io.header(off + size)
			if !prevAlloc || !nextAlloc {
				return 0, fmt.Errorf("heap: free block at %d has a free neighbor (coalesce invariant violated)", off)
			}
		}
		off += size
	}
	v.logStep("block walk ok (%d free blocks)", freeCount)
	return freeCount, nil
}

// checkCycles is spec §4.2 step 4: Floyd's algorithm over every free
// list, run before any full list traversal so a cyclic list can't hang
// the later per-node walk.
func (a *Allocator) checkCycles(v Verbosity) error {
	for c := 0; c < numClasses; c++ {
		slow := a.fl.head(c)
		fast := slow
		for fast != 0 {
			fast = a.io.nextLink(fast)
			if fast == 0 {
				break
			}
			fast = a.io.nextLink(fast)
			slow = a.io.nextLink(slow)
			if slow != 0 && slow == fast {
				return fmt.Errorf("heap: cycle detected in free list class %d", c)
			}
		}
	}
	v.logStep("no free-list cycles")
	return nil
}

// checkFreeLists is spec §4.2 step 5: walk each free list, verifying
// bounds/alignment/alloc-bit/link-symmetry/class-membership/coalesce
// invariants, and return the total number of free blocks found.
func (a *Allocator) checkFreeLists(v Verbosity) (int, error) {
	lo, hi := a.src.Lo(), a.src.Hi()
	total := 0

	for c := 0; c < numClasses; c++ {
		head := a.fl.head(c)
		if head != 0 && a.io.prevLink(head) != 0 {
			return 0, fmt.Errorf("heap: free list class %d root has non-null prev", c)
		}
		prev := 0
		for off := head; off != 0; off = a.io.nextLink(off) {
			if off < lo || off >= hi {
				return 0, fmt.Errorf("heap: free-list node at %d out of heap bounds", off)
			}
			if (off+wordSize)%doubleWord != 0 {
				return 0, fmt.Errorf("heap: free-list node at %d misaligned", off)
			}
			size, alloc := a.io.header(off)
			if alloc {
				return 0, fmt.Errorf("heap: free-list node at %d has alloc bit set", off)
			}
			if classForSize(size) != c {
				return 0, fmt.Errorf("heap: free-list node at %d has size %d outside class %d's range", off, size, c)
			}
			if a.io.prevLink(off) != prev {
				return 0, fmt.Errorf("heap: free-list node at %d: prev.next != self", off)
			}
			if next := a.io.nextLink(off); next != 0 && a.io.prevLink(next) != off {
				return 0, fmt.Errorf("heap: free-list node at %d: next.prev != self", off)
			}
			_, nextAlloc := a.io.header(off + size)
			_, prevNeighborAlloc := a.io.header(off - wordSize)
			if !nextAlloc || !prevNeighborAlloc {
				return 0, fmt.Errorf("heap: free-list node at %d has a free neighbor", off)
			}
			total++
			prev = off
		}
	}
	v.logStep("free-list walk ok (%d free blocks)", total)
	return total, nil
}
