package session

import (
	"context"
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers per key into one trailing run.
// A trigger that arrives while a run is in flight cancels that run's
// context and schedules a fresh one.
type Debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	running map[string]*run
	wg      sync.WaitGroup
	closed  bool
}

type run struct {
	cancel context.CancelFunc
}

func NewDebouncer(wait time.Duration) *Debouncer {
	return &Debouncer{
		wait:    wait,
		pending: make(map[string]*time.Timer),
		running: make(map[string]*run),
	}
}

// Trigger schedules fn for key after the quiet period. Earlier triggers for
// key that have not fired yet are dropped.
func (d *Debouncer) Trigger(ctx context.Context, key string, fn func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if t, ok := d.pending[key]; ok {
		t.Stop()
	}
	if r, ok := d.running[key]; ok {
		r.cancel()
	}
	var t *time.Timer
	t = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		if d.pending[key] != t || d.closed {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		r := &run{cancel: cancel}
		d.running[key] = r
		d.wg.Add(1)
		d.mu.Unlock()

		defer d.wg.Done()
		fn(runCtx)

		d.mu.Lock()
		if d.running[key] == r {
			delete(d.running, key)
		}
		d.mu.Unlock()
		cancel()
	})
	d.pending[key] = t
}

// Close drops pending triggers, cancels running ones and waits for them to
// return.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	for k, t := range d.pending {
		t.Stop()
		delete(d.pending, k)
	}
	for _, r := range d.running {
		r.cancel()
	}
	d.mu.Unlock()
	d.wg.Wait()
}
