// Package gopool runs background tasks for the cache package's
// periodic eviction sweep. It is a small worker pool rather than a bare
// `go f()`: tasks go through a buffered queue drained by on-demand
// workers, and only a task that finds the queue full gets a goroutine
// of its own. Grounded on concurrency/gopool's
// task-channel/on-demand-worker design.
package gopool

import (
	"log"
	"runtime/debug"
	"sync/atomic"
)

// Option tunes a Pool.
type Option struct {
	// MaxWorkers is the worker count at or above which Go stops
	// starting new workers; queued tasks then wait for a running one.
	MaxWorkers int
	// TaskChanBuffer is the size of the pending-task queue.
	TaskChanBuffer int
}

// DefaultOption returns the Option a plain New(nil) would use.
func DefaultOption() *Option {
	return &Option{MaxWorkers: 32, TaskChanBuffer: 256}
}

// Pool is a bounded worker pool for fire-and-forget background work.
type Pool struct {
	name string

	workers    int32
	maxWorkers int32

	panicHandler func(r interface{})

	tasks chan func()
}

// New creates a named Pool. A nil Option uses DefaultOption.
func New(name string, o *Option) *Pool {
	if o == nil {
		o = DefaultOption()
	}
	return &Pool{
		name:       name,
		tasks:      make(chan func(), o.TaskChanBuffer),
		maxWorkers: int32(o.MaxWorkers),
	}
}

// SetPanicHandler overrides the default log.Printf-and-continue
// behavior for panics raised by submitted tasks.
func (p *Pool) SetPanicHandler(f func(r interface{})) {
	p.panicHandler = f
}

// Go submits f to run in the background. If every worker is busy and
// the queue is full, Go starts an unbounded goroutine rather than
// block the caller.
func (p *Pool) Go(f func()) {
	select {
	case p.tasks <- f:
	default:
		go p.runTask(f)
		return
	}
	if atomic.LoadInt32(&p.workers) < p.maxWorkers {
		go p.runWorker()
	}
}

// CurrentWorkers reports how many pool goroutines are currently alive.
func (p *Pool) CurrentWorkers() int {
	return int(atomic.LoadInt32(&p.workers))
}

func (p *Pool) runTask(f func()) {
	defer func() {
		if r := recover(); r != nil {
			if p.panicHandler != nil {
				p.panicHandler(r)
			} else {
				log.Printf("gopool: panic in pool %s: %v: %s", p.name, r, debug.Stack())
			}
		}
	}()
	f()
}

func (p *Pool) runWorker() {
	atomic.AddInt32(&p.workers, 1)

	for {
		select {
		case f := <-p.tasks:
			p.runTask(f)
		default:
			atomic.AddInt32(&p.workers, -1)
			// A task queued between the empty check and the decrement may
			// have seen the pool at maxWorkers and started no worker; keep
			// draining rather than leave it stranded.
			if len(p.tasks) == 0 {
				return
			}
			atomic.AddInt32(&p.workers, 1)
		}
	}
}
