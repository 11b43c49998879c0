package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vigilfs/vigil/internal/metrics"
)

// dispatcher aggregates flushed classifications into per-category
// batches and invokes the caller's handlers. Handlers run on the
// dispatch goroutine, one at a time, under a mutex shared with stop:
// once stop returns, no handler invocation can begin, and an in-flight
// one has already finished.
type dispatcher struct {
	handlers Handlers
	tick     time.Duration
	in       chan classified
	stopCh   chan struct{}
	doneCh   chan struct{}
	onPanic  func(Category, any)
	mu       sync.Mutex
	stopped  bool
}

func newDispatcher(handlers Handlers, tick time.Duration, onPanic func(Category, any)) *dispatcher {
	return &dispatcher{
		handlers: handlers,
		tick:     tick,
		in:       make(chan classified, 256),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		onPanic:  onPanic,
	}
}

// enqueue hands one classification to the dispatch goroutine. Blocks
// for backpressure when the queue is full, but never past stop.
func (d *dispatcher) enqueue(cl classified) {
	select {
	case d.in <- cl:
	case <-d.stopCh:
	}
}

// run aggregates and delivers until the input closes or stop is called.
// Same-category flushes landing within one tick coalesce into a single
// batch; within a batch, paths keep flush order.
func (d *dispatcher) run() {
	defer close(d.doneCh)

	buf := make(map[Category][]string)
	var timer <-chan time.Time

	deliver := func() {
		for _, c := range Categories() {
			paths := buf[c]
			if len(paths) == 0 {
				continue
			}
			d.invoke(Batch{Category: c, Paths: paths})
		}
		buf = make(map[Category][]string)
		timer = nil
	}

	for {
		select {
		case <-d.stopCh:
			return
		case cl, ok := <-d.in:
			if !ok {
				// Natural end of stream: deliver what settled
				deliver()
				return
			}
			buf[cl.category] = append(buf[cl.category], cl.rel)
			if cl.renamedFrom != "" {
				slog.Debug("rename correlated",
					slog.String("from", cl.renamedFrom),
					slog.String("to", cl.rel),
				)
			}
			if timer == nil {
				timer = time.After(d.tick)
			}
		case <-timer:
			deliver()
		}
	}
}

// invoke calls one handler under the stop barrier. A panicking handler
// is recovered and reported; later batches still deliver.
func (d *dispatcher) invoke(b Batch) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	h := d.handlers.forCategory(b.Category)
	if h == nil {
		// No handler registered for this category
		return
	}

	m := metrics.New()
	m.RecordBatch(b.Category.String(), len(b.Paths))

	start := time.Now()
	defer func() {
		m.ObserveHandler(b.Category.String(), time.Since(start).Seconds())
		if r := recover(); r != nil {
			m.RecordPanic(b.Category.String())
			slog.Error("handler panicked",
				slog.String("category", b.Category.String()),
				slog.Any("panic", r),
			)
			if d.onPanic != nil {
				d.onPanic(b.Category, r)
			}
		}
	}()

	h(b.Paths)
}

// stop synchronously bars further handler invocations, waiting out an
// in-flight one, then reaps the dispatch goroutine. Safe to call
// multiple times.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.stopCh)
	}
	d.mu.Unlock()
	<-d.doneCh
}
