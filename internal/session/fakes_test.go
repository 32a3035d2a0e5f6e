package session

import (
	"sync"
	"testing"
	"time"

	"github.com/Gaurav-Gosain/newterm/internal/subprocess"
)

// fakeProcess records what the session asks of its subprocess.
type fakeProcess struct {
	mu       sync.Mutex
	h        subprocess.Handler
	startErr error
	stops    int
	writes   []string
	sizes    [][2]int
	liveness int

	// holdOutput keeps OutputDone open after Stop until endOutput.
	holdOutput bool
	done       chan struct{}
	doneOnce   sync.Once
}

func (f *fakeProcess) Start(h subprocess.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.h = h
	h.Connected()
	return nil
}

func (f *fakeProcess) Stop() error {
	f.mu.Lock()
	f.stops++
	hold := f.holdOutput
	f.mu.Unlock()
	if !hold {
		f.endOutput()
	}
	return nil
}

func (f *fakeProcess) OutputDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done == nil {
		f.done = make(chan struct{})
	}
	return f.done
}

// endOutput marks the end of the simulated output stream.
func (f *fakeProcess) endOutput() {
	f.OutputDone()
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	f.doneOnce.Do(func() { close(done) })
}

func (f *fakeProcess) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, string(p))
	return nil
}

func (f *fakeProcess) SetSize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, [2]int{cols, rows})
	return nil
}

func (f *fakeProcess) CheckLiveness() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveness++
}

func (f *fakeProcess) handler() subprocess.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.h
}

// output simulates the shell printing p. Keep chunks below the ingest
// high-water mark between ticks or the call blocks.
func (f *fakeProcess) output(p string) {
	f.handler().DataReceived([]byte(p))
}

func (f *fakeProcess) exit(err error) {
	f.handler().Disconnected(err)
}

func (f *fakeProcess) recordedSizes() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.sizes...)
}

func (f *fakeProcess) recordedWrites() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// manualDispatcher queues callbacks until flush.
type manualDispatcher struct {
	mu    sync.Mutex
	queue []func()
}

func (d *manualDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, fn)
}

func (d *manualDispatcher) flush() {
	for {
		d.mu.Lock()
		queue := d.queue
		d.queue = nil
		d.mu.Unlock()
		if len(queue) == 0 {
			return
		}
		for _, fn := range queue {
			fn()
		}
	}
}

// fakeClock records rate changes instead of ticking.
type fakeClock struct {
	mu      sync.Mutex
	rates   []int
	stopped bool
}

func (c *fakeClock) SetRate(hz int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.rates = append(c.rates, hz)
	}
}

func (c *fakeClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeClock) last() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rates) == 0 {
		return 0
	}
	return c.rates[len(c.rates)-1]
}

func (c *fakeClock) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// recorder collects callbacks. It is only touched from flush.
type recorder struct {
	snapshots []BufferSnapshot
	scrolls   int
	bells     []Bell
	states    []State
	files     [][2]string
	errs      []error
	closes    int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnRefresh:            func(b BufferSnapshot) { r.snapshots = append(r.snapshots, b) },
		OnScroll:             func(bool) { r.scrolls++ },
		OnBell:               func(b Bell) { r.bells = append(r.bells, b) },
		OnStateChanged:       func(s State) { r.states = append(r.states, s) },
		OnCurrentFileChanged: func(file, cwd string) { r.files = append(r.files, [2]string{file, cwd}) },
		OnError:              func(err error) { r.errs = append(r.errs, err) },
		OnClose:              func() { r.closes++ },
	}
}

func (r *recorder) lastSnapshot(t *testing.T) BufferSnapshot {
	t.Helper()
	if len(r.snapshots) == 0 {
		t.Fatal("no snapshot dispatched")
	}
	return r.snapshots[len(r.snapshots)-1]
}

type harness struct {
	s     *Session
	proc  *fakeProcess
	disp  *manualDispatcher
	clock *fakeClock
	rec   *recorder

	mu  sync.Mutex
	now time.Time
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	h := &harness{
		proc:  &fakeProcess{},
		disp:  &manualDispatcher{},
		clock: &fakeClock{},
		rec:   &recorder{},
		now:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if opts.Process == nil {
		opts.Process = h.proc
	}
	opts.Dispatcher = h.disp
	opts.Callbacks = h.rec.callbacks()

	s := New(opts)
	s.clock = h.clock
	s.now = h.clockNow
	s.sm.localUser, s.sm.localHost = "me", "mybox"
	h.s = s

	t.Cleanup(func() { _ = s.Stop() })
	return h
}

func (h *harness) clockNow() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

// tick runs one refresh tick and delivers the resulting callbacks.
func (h *harness) tick() {
	h.s.worker.Do(h.s.tick)
	h.disp.flush()
}

// settle waits for queued worker tasks, including ones they queue, and
// delivers callbacks.
func (h *harness) settle() {
	h.s.worker.Do(func() {})
	h.s.worker.Do(func() {})
	h.disp.flush()
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func validSize(cols, rows int) ScreenSize {
	return ScreenSize{Cols: cols, Rows: rows, CellWidth: 8, CellHeight: 16}
}
