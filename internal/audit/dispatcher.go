package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatch queue.
type Config struct {
	Enabled    bool
	BufferSize int
}

// Dispatcher forwards events to a sink from a single worker goroutine.
// Publishing never blocks the caller: when the queue is full the event is
// counted and discarded, so a slow sink cannot stall a login. A nil
// *Dispatcher is valid and inert, which is how a disabled audit
// configuration is represented.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewDispatcher starts the delivery worker, or returns nil when auditing is
// disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size < 1 {
		size = 1
	}

	d := &Dispatcher{
		sink:  sink,
		queue: make(chan Event, size),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.queue {
			d.sink.Emit(context.Background(), event)
		}
	}()
	return d
}

// Emit enqueues the event without blocking. Events published after Close or
// while the queue is full are discarded.
func (d *Dispatcher) Emit(event Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
	}
}

// Close stops intake, lets the worker drain whatever is buffered, then
// returns. Safe to call repeatedly and on a nil dispatcher.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Dropped reports how many events were discarded because the queue was
// full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
