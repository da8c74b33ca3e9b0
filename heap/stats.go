package heap

// Stats is a read-only snapshot of heap occupancy, derived from the same
// free-list walk CheckHeap performs but without any of its invariant
// verification — cheap enough for a hot-path monitoring call. Grounded
// on unsafex/malloc/buddy.go's Available().
type Stats struct {
	TotalBytes     int
	FreeBytes      int
	AllocatedBytes int
	// FreeByClass holds the number of free blocks currently in each of
	// the 13 size classes, index-for-index with the spec §3.1 table.
	FreeByClass [numClasses]int
}

// Stats reports current heap occupancy without verifying any invariants.
func (a *Allocator) Stats() Stats {
	var s Stats
	s.TotalBytes = a.src.Hi() - prefixSize - epilogueSize

	for c := 0; c < numClasses; c++ {
		a.fl.each(c, func(off int) bool {
			size, _ := a.io.header(off)
			s.FreeBytes += size
			s.FreeByClass[c]++
			return true
		})
	}
	s.AllocatedBytes = s.TotalBytes - s.FreeBytes
	return s
}
