package heap

import "encoding/binary"

const (
	// wordSize is the width of a header/footer tag.
	wordSize = 4
	// doubleWord is the allocator's alignment granularity; every block
	// size is a multiple of it.
	doubleWord = 8

	// minBlockPayload is the smallest number of bytes a free block needs
	// to hold its intrusive prev/next links.
	minBlockPayload = 2 * 8 // prev + next, each an 8-byte offset

	// MinBlockSize is the smallest legal block size (header+footer+links),
	// spec §3.1's MIN_BLOCK.
	MinBlockSize = 2*wordSize + minBlockPayload // 24

	// numClasses is the number of segregated size classes, spec §3.1.
	numClasses = 13

	// listRootsSize is the byte size of the size-class index stored at
	// the very start of the heap, spec §6.4.
	listRootsSize = numClasses * 8
	// prefixPad is the padding spec §6.4 places between the list roots
	// and the prologue so that every block header sits 4 bytes before an
	// 8-byte boundary and every payload lands 8-byte aligned.
	prefixPad = 4
	// prologueSize is the prologue's on-disk size: header+footer, no
	// payload (spec §3.1: "an 8-byte sentinel block").
	prologueSize = 2 * wordSize
	// prefixSize is everything before the first regular block: list
	// roots, pad, and the prologue.
	prefixSize = listRootsSize + prefixPad + prologueSize
	// epilogueSize is the epilogue's on-disk footprint: header only, no
	// footer, size field 0.
	epilogueSize = wordSize
)

// classUpperBounds holds each class's inclusive upper bound in bytes; the
// 13th class has no finite bound (represented as -1, "infinity").
var classUpperBounds = [numClasses]int{32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384, 32768, 65536, -1}

// classForSize returns the smallest class index (0-based) whose upper
// bound is >= size, per spec §3.1's "Class selection".
func classForSize(size int) int {
	for i, ub := range classUpperBounds {
		if ub == -1 || size <= ub {
			return i
		}
	}
	return numClasses - 1
}

// roundUp8 rounds n up to the next multiple of 8.
func roundUp8(n int) int {
	return (n + 7) &^ 7
}

// adjustedSize computes the block size for a requested payload of s
// bytes, per spec §4.1's "Size adjustment". A return of 0 means "no
// allocation" (s == 0).
func adjustedSize(s int) int {
	if s == 0 {
		return 0
	}
	if s <= 16 {
		return MinBlockSize
	}
	return roundUp8(s + 2*wordSize)
}

// tag packs size and the allocated bit into a single header/footer word:
// size occupies the upper 29 bits, alloc occupies bit 0, bits 1-2 are
// unused (always zero here) — spec §6.3.
func tag(size int, alloc bool) uint32 {
	w := uint32(size)
	if alloc {
		w |= 1
	}
	return w
}

func untag(w uint32) (size int, alloc bool) {
	return int(w &^ 7), w&1 != 0
}

// blockIO reads and writes header/footer/link words directly against a
// Source's backing bytes. All fields are little-endian per spec §6.3.
type blockIO struct {
	src Source
}

func (b blockIO) readWord(off int) uint32 {
	return binary.LittleEndian.Uint32(b.src.Bytes(off, wordSize))
}

func (b blockIO) writeWord(off int, w uint32) {
	binary.LittleEndian.PutUint32(b.src.Bytes(off, wordSize), w)
}

// header returns the (size, alloc) pair at a block's header word.
func (b blockIO) header(blockOff int) (int, bool) {
	return untag(b.readWord(blockOff))
}

func (b blockIO) setHeader(blockOff, size int, alloc bool) {
	b.writeWord(blockOff, tag(size, alloc))
}

// footer returns the (size, alloc) pair at a block's footer word,
// i.e. the boundary tag duplicated at blockOff+size-wordSize.
func (b blockIO) footer(blockOff, size int) (int, bool) {
	return untag(b.readWord(blockOff + size - wordSize))
}

func (b blockIO) setFooter(blockOff, size int, alloc bool) {
	b.writeWord(blockOff+size-wordSize, tag(size, alloc))
}

// setBoth writes matching header and footer for a block, the normal way
// to mark a block's size/alloc state.
func (b blockIO) setBoth(blockOff, size int, alloc bool) {
	b.setHeader(blockOff, size, alloc)
	b.setFooter(blockOff, size, alloc)
}

// prevLink/nextLink address the intrusive doubly-linked free-list pointers
// embedded at the start of a free block's payload, spec §6.3: 8-byte
// absolute offsets, 0 is null.
func (b blockIO) prevLink(blockOff int) int {
	return int(binary.LittleEndian.Uint64(b.src.Bytes(blockOff+wordSize, 8)))
}

func (b blockIO) setPrevLink(blockOff, v int) {
	binary.LittleEndian.PutUint64(b.src.Bytes(blockOff+wordSize, 8), uint64(v))
}

func (b blockIO) nextLink(blockOff int) int {
	return int(binary.LittleEndian.Uint64(b.src.Bytes(blockOff+wordSize+8, 8)))
}

func (b blockIO) setNextLink(blockOff, v int) {
	binary.LittleEndian.PutUint64(b.src.Bytes(blockOff+wordSize+8, 8), uint64(v))
}

// payloadOffset returns the offset of a block's first payload byte.
func payloadOffset(blockOff int) int {
	return blockOff + wordSize
}

// blockFromPayload recovers a block's offset from a payload offset
// previously returned by Alloc/Calloc/Realloc.
func blockFromPayload(payloadOff int) int {
	return payloadOff - wordSize
}
