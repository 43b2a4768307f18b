package handler

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/treelog-io/treelog/pkg/model"
)

const (
	defaultQueueSize    = 512
	defaultDrainTimeout = 5 * time.Second
)

// Async decouples emission latency from sink I/O by queueing records onto a
// bounded channel drained by a single background writer. When the queue is
// full the record is dropped and counted rather than blocking the emitter.
type Async struct {
	inner        Handler
	queue        chan *model.Record
	done         chan struct{}
	drainTimeout time.Duration

	closed            atomic.Bool
	enqueued, dropped atomic.Uint64
	wg                sync.WaitGroup
}

// NewAsync wraps inner with a bounded queue of queueSize records (0 picks
// the default). The background writer starts immediately.
func NewAsync(inner Handler, queueSize int, drainTimeout time.Duration) *Async {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if drainTimeout <= 0 {
		drainTimeout = defaultDrainTimeout
	}
	a := &Async{
		inner:        inner,
		queue:        make(chan *model.Record, queueSize),
		done:         make(chan struct{}),
		drainTimeout: drainTimeout,
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// The queue channel is never closed: emitters racing Close must not be able
// to send on a closed channel. Shutdown is signalled on done instead, and
// the writer drains whatever is still queued before exiting.
func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case rec := <-a.queue:
			a.inner.Emit(rec)
		case <-a.done:
			for {
				select {
				case rec := <-a.queue:
					a.inner.Emit(rec)
				default:
					return
				}
			}
		}
	}
}

// Name implements Handler.
func (a *Async) Name() string { return a.inner.Name() }

// NeedsCaller implements Handler.
func (a *Async) NeedsCaller() bool { return a.inner.NeedsCaller() }

// Emit implements Handler. Emissions after Close begin are dropped
// best-effort; a full queue drops the record and bumps the counter.
func (a *Async) Emit(rec *model.Record) {
	if a.closed.Load() {
		a.dropped.Add(1)
		return
	}
	select {
	case a.queue <- rec:
		a.enqueued.Add(1)
	default:
		a.dropped.Add(1)
	}
}

// Stats returns how many records were enqueued and how many were dropped on
// overload or after shutdown.
func (a *Async) Stats() (enqueued, dropped uint64) {
	return a.enqueued.Load(), a.dropped.Load()
}

// Flush implements Handler. It waits for the queue to empty, bounded by the
// drain timeout, then flushes the wrapped handler.
func (a *Async) Flush() error {
	deadline := time.Now().Add(a.drainTimeout)
	for len(a.queue) > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("handler %q: drain timed out with %d records queued", a.Name(), len(a.queue))
		}
		time.Sleep(time.Millisecond)
	}
	return a.inner.Flush()
}

// Close implements Handler. The writer drains remaining records within the
// drain timeout; anything still queued after that is discarded.
func (a *Async) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(a.done)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	var drainErr error
	select {
	case <-done:
	case <-time.After(a.drainTimeout):
		drainErr = fmt.Errorf("handler %q: shutdown drain timed out", a.Name())
	}

	if err := a.inner.Flush(); err != nil && drainErr == nil {
		drainErr = err
	}
	if err := a.inner.Close(); err != nil && drainErr == nil {
		drainErr = err
	}
	return drainErr
}
