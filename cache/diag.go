package cache

import (
	"fmt"

	"github.com/segcache/core/internal/xfnv"
)

// correlationID returns a short identifier for a (host, uri) pair, for
// tying related log lines together. It is never used for lookup.
func correlationID(host, uri string) string {
	h := xfnv.HashStr(host) ^ xfnv.HashStr(uri)
	return fmt.Sprintf("%08x", uint32(h))
}
