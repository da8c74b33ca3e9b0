package heap

import "encoding/binary"

// freeList manages the 13 segregated, doubly-linked, MRU-first free
// lists whose roots live in the heap's prefix region (spec §3.1/§6.4).
// Links are intrusive: they live inside the payload bytes of free blocks
// themselves, per spec §9's design note, rather than in a side table.
type freeList struct {
	io blockIO
}

// rootOffset returns the offset of the 8-byte root slot for class c.
func (f freeList) rootOffset(c int) int {
	return c * 8
}

// head returns the offset of class c's head block, or 0 if empty.
func (f freeList) head(c int) int {
	return int(binary.LittleEndian.Uint64(f.io.src.Bytes(f.rootOffset(c), 8)))
}

func (f freeList) setHead(c, blockOff int) {
	binary.LittleEndian.PutUint64(f.io.src.Bytes(f.rootOffset(c), 8), uint64(blockOff))
}

// insert prepends blockOff to class c's free list (MRU-first insertion,
// spec §3.1 "Free list").
func (f freeList) insert(c, blockOff int) {
	old := f.head(c)
	f.io.setPrevLink(blockOff, 0)
	f.io.setNextLink(blockOff, old)
	if old != 0 {
		f.io.setPrevLink(old, blockOff)
	}
	f.setHead(c, blockOff)
}

// remove unlinks blockOff from class c's free list.
func (f freeList) remove(c, blockOff int) {
	prev := f.io.prevLink(blockOff)
	next := f.io.nextLink(blockOff)
	if prev != 0 {
		f.io.setNextLink(prev, next)
	} else {
		f.setHead(c, next)
	}
	if next != 0 {
		f.io.setPrevLink(next, prev)
	}
}

// each calls fn for every block in class c's list, head to tail. fn
// returning false stops the walk early.
func (f freeList) each(c int, fn func(blockOff int) bool) {
	for off := f.head(c); off != 0; off = f.io.nextLink(off) {
		if !fn(off) {
			return
		}
	}
}
