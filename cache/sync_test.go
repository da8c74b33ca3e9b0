package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRWGateMultipleReadersConcurrent(t *testing.T) {
	var g rwGate
	g.beginRead()

	done := make(chan struct{})
	go func() {
		g.beginRead() // must not block behind the first reader
		close(done)
		g.endRead()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked behind the first")
	}
	g.endRead()
}

func TestRWGateWritersAreSerialized(t *testing.T) {
	var g rwGate
	var active int32
	var maxActive int32

	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		go func() {
			defer wg.Done()
			g.beginWrite()
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&maxActive)
				if n <= old || atomic.CompareAndSwapInt32(&maxActive, old, n) {
					break
				}
			}
			atomic.AddInt32(&active, -1)
			g.endWrite()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive)
}

func TestRWGateLastReaderReleasesWriteMutex(t *testing.T) {
	var g rwGate
	g.beginRead()
	g.beginRead()

	writerDone := make(chan struct{})
	go func() {
		g.beginWrite()
		close(writerDone)
		g.endWrite()
	}()

	g.endRead() // one reader remains; writer must still be blocked
	select {
	case <-writerDone:
		t.Fatal("writer proceeded while a reader was still active")
	case <-time.After(20 * time.Millisecond):
	}

	g.endRead() // last reader leaves; writer may now proceed
	select {
	case <-writerDone:
	case <-time.After(time.Second):
		t.Fatal("writer never proceeded after the last reader left")
	}
}
