package terminal

import (
	"sync"
	"sync/atomic"
	"time"
)

// fakeChannel records every operation and serves queued output chunks
type fakeChannel struct {
	mu       sync.Mutex
	ops      []string
	written  []byte
	chunks   [][]byte
	alive    bool
	writeErr error
	exitErr  error
	dropped  int64
	size     [2]int
	done     chan struct{}
	doneOnce sync.Once

	// opDelay widens the window in which overlapping calls would be observed
	opDelay  time.Duration
	inFlight int32
	overlaps int32
}

func newFakeChannel(chunks ...string) *fakeChannel {
	f := &fakeChannel{
		alive: true,
		done:  make(chan struct{}),
	}
	for _, c := range chunks {
		f.chunks = append(f.chunks, []byte(c))
	}
	return f
}

func (f *fakeChannel) enter() {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.AddInt32(&f.overlaps, 1)
	}
	if f.opDelay > 0 {
		time.Sleep(f.opDelay)
	}
}

func (f *fakeChannel) exit() {
	atomic.AddInt32(&f.inFlight, -1)
}

func (f *fakeChannel) Write(p []byte) error {
	f.enter()
	defer f.exit()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return &StreamError{Op: "write", Err: f.writeErr}
	}
	if !f.alive {
		return &StreamError{Op: "write", Err: ErrChannelClosed}
	}
	f.ops = append(f.ops, "write:"+string(p))
	f.written = append(f.written, p...)
	return nil
}

func (f *fakeChannel) WriteLine(text string) error {
	return f.Write([]byte(text + "\n"))
}

func (f *fakeChannel) ReadAvailable(maxBytes int, timeout time.Duration) ReadResult {
	f.enter()
	defer f.exit()

	f.mu.Lock()
	f.ops = append(f.ops, "read")
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		if maxBytes > 0 && len(chunk) > maxBytes {
			f.chunks[0] = chunk[maxBytes:]
			chunk = chunk[:maxBytes]
		} else {
			f.chunks = f.chunks[1:]
		}
		f.mu.Unlock()
		return ReadResult{Data: chunk, Status: ReadData}
	}
	alive := f.alive
	f.mu.Unlock()

	if !alive {
		return ReadResult{Status: ReadClosed}
	}
	time.Sleep(timeout)
	return ReadResult{Status: ReadTimeout}
}

func (f *fakeChannel) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeChannel) Pid() int { return 4242 }

func (f *fakeChannel) Done() <-chan struct{} { return f.done }

func (f *fakeChannel) ExitErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitErr
}

func (f *fakeChannel) setDropped(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropped = n
}

func (f *fakeChannel) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *fakeChannel) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "resize")
	f.size = [2]int{cols, rows}
	return nil
}

func (f *fakeChannel) Close() error {
	f.kill()
	return nil
}

// exitWith simulates the process exiting with err
func (f *fakeChannel) exitWith(err error) {
	f.mu.Lock()
	f.exitErr = err
	f.mu.Unlock()
	f.kill()
}

// kill simulates the process exiting
func (f *fakeChannel) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
	f.doneOnce.Do(func() { close(f.done) })
}

func (f *fakeChannel) push(chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, []byte(chunk))
}

func (f *fakeChannel) recordedOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

func (f *fakeChannel) writtenBytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.written...)
}
