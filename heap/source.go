package heap

import (
	"fmt"

	"github.com/bytedance/gopkg/lang/dirtmake"
)

// Source is the environment primitive a heap grows against: the Go
// expression of the spec's external heap_extend/heap_lo/heap_hi trio.
// Extend must return a contiguous region immediately following the
// previous Hi(); the heap never shrinks and never has a gap.
type Source interface {
	// Extend grows the region by nbytes and returns the offset the new
	// region starts at. ok is false if the region cannot grow further
	// (ENOMEM).
	Extend(nbytes int) (base int, ok bool)
	// Lo returns the offset of the first byte currently backed by the
	// source.
	Lo() int
	// Hi returns the offset one past the last byte currently backed by
	// the source.
	Hi() int
	// Bytes returns a slice view of [off, off+n) for reading or writing.
	// The returned slice aliases the source's backing storage.
	Bytes(off, n int) []byte
}

// Arena is the one concrete Source this module ships: a growable []byte
// standing in for sbrk. There is no real sbrk on a hosted Go process, so
// Extend simply reallocates a bigger backing slice and copies the old
// bytes forward, same as append would, except the new tail is left
// uninitialized (via dirtmake) since the allocator is about to overwrite
// it with a free-block header/footer immediately after Extend returns.
type Arena struct {
	buf []byte
}

// NewArena creates an empty Arena. Call Extend (normally done by New)
// before using it.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) Lo() int { return 0 }
func (a *Arena) Hi() int { return len(a.buf) }

func (a *Arena) Extend(nbytes int) (int, bool) {
	if nbytes <= 0 {
		return 0, false
	}
	base := len(a.buf)
	// The caller writes every word of the new region it later reads
	// (prefix fields, block headers/footers, free-list links); payload
	// bytes are handed out as they are, so there is no need to pay for
	// make's zero-fill here.
	grown := dirtmake.Bytes(base+nbytes, base+nbytes)
	copy(grown, a.buf)
	a.buf = grown
	return base, true
}

func (a *Arena) Bytes(off, n int) []byte {
	if off < 0 || n < 0 || off+n > len(a.buf) {
		panic(fmt.Sprintf("heap: Bytes(%d,%d) out of range [0,%d)", off, n, len(a.buf)))
	}
	return a.buf[off : off+n]
}
