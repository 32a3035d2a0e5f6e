package session

import "sync"

// worker runs submitted functions one at a time, in submission order, on a
// single goroutine. Submit never blocks and never drops work while the
// worker is open.
type worker struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	signal chan struct{} // capacity 1, coalesces wakeups
	done   chan struct{}
}

func newWorker() *worker {
	w := &worker{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.signal
			continue
		}
		fn := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		fn()
	}
}

func (w *worker) wake() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Submit queues fn. It reports false once the worker has been closed.
func (w *worker) Submit(fn func()) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, fn)
	w.mu.Unlock()
	w.wake()
	return true
}

// Do runs fn on the worker and waits for it to return. It must not be
// called from the worker itself.
func (w *worker) Do(fn func()) bool {
	finished := make(chan struct{})
	if !w.Submit(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// Dispatch lets a worker serve as the default Dispatcher.
func (w *worker) Dispatch(fn func()) {
	w.Submit(fn)
}

// Close stops accepting work. Already queued work still runs.
func (w *worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wake()
}

// Stop closes the worker and waits for queued work to finish.
func (w *worker) Stop() {
	w.Close()
	<-w.done
}

// Dispatcher delivers callbacks on the display layer's goroutine. Calls
// must be delivered in the order they were dispatched.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to a Dispatcher.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// QueueDispatcher hands callbacks to deliver from a goroutine of its own,
// so Dispatch returns immediately even when deliver blocks. It is meant
// for display layers whose message send waits for their event loop.
type QueueDispatcher struct {
	w       *worker
	deliver func(fn func())
}

// NewQueueDispatcher returns a running QueueDispatcher.
func NewQueueDispatcher(deliver func(fn func())) *QueueDispatcher {
	return &QueueDispatcher{w: newWorker(), deliver: deliver}
}

// Dispatch queues fn for delivery.
func (q *QueueDispatcher) Dispatch(fn func()) {
	q.w.Submit(func() { q.deliver(fn) })
}

// Close stops accepting callbacks. Queued ones are still delivered.
func (q *QueueDispatcher) Close() {
	q.w.Close()
}
