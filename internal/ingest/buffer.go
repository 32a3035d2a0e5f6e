// Package ingest provides the byte accumulator that sits between a
// subprocess reader and the session's serial worker.
package ingest

import "sync"

// DefaultHighWaterMark is the buffered length above which producers stall
// until the worker drains.
const DefaultHighWaterMark = 100

// Buffer is an ordered byte accumulator. Append may be called from any
// goroutine; DrainAll must only be called from the single consumer.
type Buffer struct {
	mu      sync.Mutex
	buf     []byte
	hwm     int
	closed  bool
	drained chan struct{} // closed and replaced on every drain
}

// New creates a buffer with the given high-water mark. A non-positive mark
// uses DefaultHighWaterMark.
func New(highWaterMark int) *Buffer {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	return &Buffer{
		hwm:     highWaterMark,
		drained: make(chan struct{}),
	}
}

// Append adds p to the end of the buffer. If the buffer is already at the
// high-water mark the call waits for the next drain before appending, and
// if the append pushes the buffer past the mark it waits for the drain that
// consumes it. Both waits end early when the buffer is closed.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}

	b.mu.Lock()
	for !b.closed && len(b.buf) >= b.hwm {
		wait := b.drained
		b.mu.Unlock()
		<-wait
		b.mu.Lock()
	}
	if b.closed {
		b.mu.Unlock()
		return
	}

	b.buf = append(b.buf, p...)
	var wait chan struct{}
	if len(b.buf) > b.hwm {
		wait = b.drained
	}
	b.mu.Unlock()

	if wait != nil {
		<-wait
	}
}

// AppendNoWait adds p without applying backpressure. It is meant for
// content injected by the consumer itself, which must never wait on its
// own drain.
func (b *Buffer) AppendNoWait(p []byte) {
	if len(p) == 0 {
		return
	}
	b.mu.Lock()
	if !b.closed {
		b.buf = append(b.buf, p...)
	}
	b.mu.Unlock()
}

// DrainAll returns everything buffered and empties the buffer, releasing
// any producer waiting on backpressure. It returns nil when empty.
func (b *Buffer) DrainAll() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.buf
	b.buf = nil
	if !b.closed {
		close(b.drained)
		b.drained = make(chan struct{})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Len reports the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Close releases all waiting producers. Later appends are discarded, but
// bytes already buffered remain available to DrainAll.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.drained)
}

// HighWaterMark returns the configured mark.
func (b *Buffer) HighWaterMark() int {
	return b.hwm
}
