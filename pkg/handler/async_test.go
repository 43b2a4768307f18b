package handler

import (
	"sync"
	"testing"
	"time"

	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

// collectHandler records emitted records, optionally stalling to simulate a
// slow sink.
type collectHandler struct {
	mu    sync.Mutex
	recs  []*model.Record
	stall time.Duration
}

func (c *collectHandler) Name() string      { return "collect" }
func (c *collectHandler) NeedsCaller() bool { return false }
func (c *collectHandler) Flush() error      { return nil }
func (c *collectHandler) Close() error      { return nil }

func (c *collectHandler) Emit(rec *model.Record) {
	if c.stall > 0 {
		time.Sleep(c.stall)
	}
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func (c *collectHandler) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func TestAsyncDelivers(t *testing.T) {
	inner := &collectHandler{}
	a := NewAsync(inner, 16, time.Second)

	for i := 0; i < 10; i++ {
		a.Emit(record(level.Info, "msg"))
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := inner.count(); got != 10 {
		t.Errorf("Expected 10 delivered records, got %d", got)
	}
	enq, dropped := a.Stats()
	if enq != 10 || dropped != 0 {
		t.Errorf("Stats: expected 10/0, got %d/%d", enq, dropped)
	}
}

func TestAsyncDropsOnOverload(t *testing.T) {
	inner := &collectHandler{stall: 50 * time.Millisecond}
	a := NewAsync(inner, 2, 2*time.Second)
	defer a.Close()

	for i := 0; i < 20; i++ {
		a.Emit(record(level.Info, "burst"))
	}

	_, dropped := a.Stats()
	if dropped == 0 {
		t.Error("Expected drops on overload with a bounded queue")
	}
}

func TestAsyncDropsAfterClose(t *testing.T) {
	inner := &collectHandler{}
	a := NewAsync(inner, 16, time.Second)
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	a.Emit(record(level.Info, "late")) // must not panic or deliver
	if got := inner.count(); got != 0 {
		t.Errorf("Expected no delivery after close, got %d", got)
	}
	if _, dropped := a.Stats(); dropped != 1 {
		t.Errorf("Expected late emission counted as dropped, got %d", dropped)
	}
}

func TestAsyncCloseDrainsQueue(t *testing.T) {
	inner := &collectHandler{stall: time.Millisecond}
	a := NewAsync(inner, 64, 2*time.Second)

	for i := 0; i < 30; i++ {
		a.Emit(record(level.Info, "queued"))
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := inner.count(); got != 30 {
		t.Errorf("Expected drain on close to deliver all 30, got %d", got)
	}
}

func TestAsyncEmitRacingCloseDoesNotPanic(t *testing.T) {
	inner := &collectHandler{}
	a := NewAsync(inner, 4, time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			a.Emit(record(level.Info, "raced"))
		}
	}()
	if err := a.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	wg.Wait()

	// Every emission is either enqueued or counted as dropped, panicking on
	// neither side of the race.
	enq, dropped := a.Stats()
	if enq+dropped != 1000 {
		t.Errorf("Expected 1000 emissions accounted for, got %d enqueued + %d dropped", enq, dropped)
	}
}

func TestAsyncCloseIdempotent(t *testing.T) {
	a := NewAsync(&collectHandler{}, 4, time.Second)
	if err := a.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second Close must be a no-op, got %v", err)
	}
}
