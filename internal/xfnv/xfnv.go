// Package xfnv computes a short FNV-1a hash used only to give cache
// diagnostics a stable-within-process correlation id; it is never used
// for lookup and the result is never stored across process boundaries.
// Adapted from hash/xfnv/xfnv.go, with the unsafe-pointer fast path
// dropped: that file trades cross-platform stability for speed because
// it runs on a hashing hot path, but a diagnostic log line does not.
package xfnv

const (
	offset64 = uint64(14695981039346656037)
	prime64  = uint64(1099511628211)
)

// HashStr returns the FNV-1a hash of s.
func HashStr(s string) uint64 {
	h := offset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}
