// Package heap implements a segregated free-list allocator over a linear,
// growable byte arena: boundary-tag block layout, doubly-linked free lists
// partitioned by size class, first-fit search, split-on-allocate, and
// immediate bidirectional coalescing.
//
// Blocks are addressed as int byte offsets into the arena a Source
// produces, not raw Go pointers — Go disallows the pointer arithmetic the
// reference allocator performs, so every "pointer" in this package is an
// intra-arena offset, and 0 is the null sentinel (offset 0 holds the
// list-root region, so no block or payload ever sits there).
package heap
