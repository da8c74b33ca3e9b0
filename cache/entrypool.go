package cache

import (
	"sync"

	"github.com/bytedance/gopkg/lang/mcache"
)

// entryBlockSize is how many *entry structs entryPool carves out at
// once when its free list runs dry, the same batch-allocate idea
// connstate/poll_cache.go uses for fdOperator to keep per-entry
// allocation off the GC.
const entryBlockSize = 64

// entryPool is a free list of reusable *entry structs, grounded on
// connstate/poll_cache.go's pollCache. That file defers real
// reclamation through a CAS-guarded freelist/freeack dance because only
// the poller goroutine may safely recycle an fdOperator while epoll
// might still reference it; nothing here has an equivalent concurrent
// reader of a freed entry; a freed entry is only ever reachable through
// the store, and unlink always runs before free under the write lock,
// so entryPool reclaims immediately under a single mutex.
type entryPool struct {
	lock  sync.Mutex
	first *entry
}

// alloc returns a zero-valued *entry, batch-allocating a new block of
// entryBlockSize structs when the free list is empty.
func (p *entryPool) alloc() *entry {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.first == nil {
		for i := 0; i < entryBlockSize; i++ {
			e := &entry{link: p.first}
			p.first = e
		}
	}
	e := p.first
	p.first = e.link
	e.link = nil
	return e
}

// free releases e's payload buffer back to mcache and returns the
// struct itself to the pool for reuse.
func (p *entryPool) free(e *entry) {
	mcache.Free(e.payload)
	*e = entry{}

	p.lock.Lock()
	e.link = p.first
	p.first = e
	p.lock.Unlock()
}
