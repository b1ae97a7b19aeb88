package browser

import (
	"context"
	"sync"
	"time"
)

// idleWatcher signals once the page has had no in-flight requests for a
// quiet period.
type idleWatcher struct {
	rec   *Recorder
	quiet time.Duration

	mu    sync.Mutex
	timer *time.Timer
	once  sync.Once
	done  chan struct{}
}

func newIdleWatcher(rec *Recorder, quiet time.Duration) *idleWatcher {
	return &idleWatcher{
		rec:   rec,
		quiet: quiet,
		done:  make(chan struct{}),
	}
}

// check re-evaluates the in-flight count after an event. The quiet timer
// runs only while nothing is in flight.
func (w *idleWatcher) check() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.rec.Inflight() > 0 {
		return
	}
	w.timer = time.AfterFunc(w.quiet, func() {
		if w.rec.Inflight() == 0 {
			w.once.Do(func() { close(w.done) })
		}
	})
}

// Done is closed when the network has been idle for the quiet period.
func (w *idleWatcher) Done() <-chan struct{} {
	return w.done
}

func (w *idleWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// domSignal reports DOMContentLoaded of the next document. arm must be
// called before the navigation starts.
type domSignal struct {
	mu    sync.Mutex
	ready chan struct{}
}

// arm returns a channel closed by the next fire.
func (d *domSignal) arm() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = make(chan struct{})
	return d.ready
}

// fire closes the armed channel. Events without an armed channel are dropped.
func (d *domSignal) fire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready != nil {
		close(d.ready)
		d.ready = nil
	}
}

// awaitSignal blocks until ch is closed or ctx is done.
func awaitSignal(ctx context.Context, ch <-chan struct{}) error {
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
