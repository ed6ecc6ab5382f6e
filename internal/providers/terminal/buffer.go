package terminal

import (
	"io"
	"sync"
)

// Buffer is a thread-safe circular buffer for terminal output.
//
// When full, new bytes overwrite the oldest ones. Readers that find the
// buffer empty receive a channel that is closed on the next write or on
// close, so they can wait with their own deadline.
type Buffer struct {
	mu      sync.Mutex
	data    []byte
	head    int
	length  int
	dropped int64

	closed   bool
	closeErr error
	notify   chan struct{}
}

// NewBuffer creates a new circular buffer
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 4096
	}
	return &Buffer{
		data:   make([]byte, size),
		notify: make(chan struct{}),
	}
}

// Write appends p, discarding the oldest bytes if the buffer overflows.
// Writes after Close are discarded.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}

	n := len(p)
	size := len(b.data)
	if len(p) > size {
		b.dropped += int64(len(p) - size)
		p = p[len(p)-size:]
	}

	if over := b.length + len(p) - size; over > 0 {
		b.head = (b.head + over) % size
		b.length -= over
		b.dropped += int64(over)
	}

	tail := (b.head + b.length) % size
	copied := copy(b.data[tail:], p)
	copy(b.data, p[copied:])
	b.length += len(p)

	b.wake()
	return n, nil
}

// Next removes and returns up to max buffered bytes.
//
// With nothing buffered it returns a channel to wait on, or the close error
// (io.EOF for a clean close) once the buffer is closed and drained.
func (b *Buffer) Next(max int) ([]byte, <-chan struct{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length == 0 {
		if b.closed {
			return nil, nil, b.closeErr
		}
		return nil, b.notify, nil
	}

	n := b.length
	if max > 0 && n > max {
		n = max
	}

	out := make([]byte, n)
	copied := copy(out, b.data[b.head:min(b.head+n, len(b.data))])
	copy(out[copied:], b.data[:n-copied])

	b.head = (b.head + n) % len(b.data)
	b.length -= n
	if b.length == 0 {
		b.head = 0
	}
	return out, nil, nil
}

// Len returns the number of buffered bytes
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Dropped returns how many bytes were discarded on overflow
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// CloseWithError marks the buffer closed. Buffered bytes stay readable;
// err (io.EOF if nil) is reported once they are drained.
func (b *Buffer) CloseWithError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if err == nil {
		err = io.EOF
	}
	b.closed = true
	b.closeErr = err
	b.wake()
}

// wake releases current waiters. Caller holds b.mu.
func (b *Buffer) wake() {
	close(b.notify)
	b.notify = make(chan struct{})
}
