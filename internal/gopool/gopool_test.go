package gopool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	p := New("TestPoolRunsAllTasks", nil)

	n := 20
	var wg sync.WaitGroup
	wg.Add(n)
	var v int32
	for i := 0; i < n; i++ {
		p.Go(func() {
			atomic.AddInt32(&v, 1)
			wg.Done()
		})
	}
	wg.Wait()
	require.Equal(t, int32(n), atomic.LoadInt32(&v))
}

func TestPoolPanicHandler(t *testing.T) {
	p := New("TestPoolPanicHandler", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	x := "boom"
	var got interface{}
	p.SetPanicHandler(func(r interface{}) {
		got = r
		wg.Done()
	})
	p.Go(func() { panic(x) })
	wg.Wait()
	require.Equal(t, x, got)
}

func TestPoolFallsBackWhenQueueFull(t *testing.T) {
	p := New("TestPoolFallsBackWhenQueueFull", &Option{MaxWorkers: 1, TaskChanBuffer: 1})

	var wg sync.WaitGroup
	n := 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Go(func() {
			time.Sleep(time.Millisecond)
			wg.Done()
		})
	}
	wg.Wait()
}
