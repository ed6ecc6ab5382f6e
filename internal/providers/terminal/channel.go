package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// closeWait bounds how long Close waits for the killed shell to be reaped
const closeWait = 2 * time.Second

// pumpGrace bounds how long an exited shell waits for the pump to flush the
// PTY. A background job that inherited the PTY keeps it open indefinitely.
const pumpGrace = 500 * time.Millisecond

// Channel is the byte-level connection to one child process.
// PtyChannel is the production implementation.
type Channel interface {
	Write(p []byte) error
	WriteLine(text string) error
	ReadAvailable(maxBytes int, timeout time.Duration) ReadResult
	Alive() bool
	Pid() int
	Done() <-chan struct{}
	Close() error
}

// Resizer is implemented by channels whose window size can change
type Resizer interface {
	Resize(cols, rows int) error
}

// exitReporter is implemented by channels that know why their process ended
type exitReporter interface {
	ExitErr() error
}

// dropReporter is implemented by channels that discard output on overflow
type dropReporter interface {
	Dropped() int64
}

// SpawnFunc starts a channel; Manager uses it so tests can substitute fakes
type SpawnFunc func(opts Options) (Channel, error)

// PtyChannel runs a shell on a PTY and buffers its output
type PtyChannel struct {
	cmd    *exec.Cmd
	ptmx   *os.File
	output *Buffer

	pumped  chan struct{}
	exited  chan struct{}
	exitErr error

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Spawn starts opts.Shell on a new PTY of the configured size
func Spawn(opts Options) (*PtyChannel, error) {
	opts = opts.withDefaults()

	cmd := exec.Command(opts.Shell, opts.Args...)
	cmd.Dir = opts.WorkingDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(opts.Rows),
		Cols: uint16(opts.Cols),
	})
	if err != nil {
		return nil, &SpawnError{Shell: opts.Shell, Err: err}
	}

	c := &PtyChannel{
		cmd:    cmd,
		ptmx:   ptmx,
		output: NewBuffer(opts.BufferSize),
		pumped: make(chan struct{}),
		exited: make(chan struct{}),
	}

	go c.pump()
	go c.wait()

	return c, nil
}

// SpawnPty adapts Spawn to SpawnFunc
func SpawnPty(opts Options) (Channel, error) {
	return Spawn(opts)
}

// pump continuously copies PTY output into the buffer
func (c *PtyChannel) pump() {
	defer close(c.pumped)

	buf := make([]byte, 4096)
	for {
		n, err := c.ptmx.Read(buf)
		if n > 0 {
			c.output.Write(buf[:n])
		}
		if err != nil {
			c.output.CloseWithError(streamEnd(err))
			return
		}
	}
}

// streamEnd maps the errors a PTY master reports at hang-up to a clean EOF
func streamEnd(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, syscall.EIO) {
		return io.EOF
	}
	return err
}

// wait reaps the process. Done is only closed once everything the shell
// wrote before exiting has reached the buffer.
func (c *PtyChannel) wait() {
	err := c.cmd.Wait()

	c.mu.Lock()
	c.exitErr = err
	c.mu.Unlock()

	timer := time.NewTimer(pumpGrace)
	select {
	case <-c.pumped:
	case <-timer.C:
		c.output.CloseWithError(io.EOF)
	}
	timer.Stop()

	close(c.exited)
}

// Write sends raw bytes to the shell's input
func (c *PtyChannel) Write(p []byte) error {
	if !c.Alive() {
		return &StreamError{Op: "write", Err: ErrChannelClosed}
	}
	if _, err := c.ptmx.Write(p); err != nil {
		return &StreamError{Op: "write", Err: err}
	}
	return nil
}

// WriteLine sends text followed by a newline, submitting it as a command
func (c *PtyChannel) WriteLine(text string) error {
	return c.Write([]byte(text + "\n"))
}

// ReadAvailable returns up to maxBytes of output, waiting at most timeout
// for the first byte. A zero timeout returns immediately. ReadClosed is
// only reported once the buffer is closed and empty, so output written
// just before the shell exited is always delivered first.
func (c *PtyChannel) ReadAvailable(maxBytes int, timeout time.Duration) ReadResult {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		data, wait, err := c.output.Next(maxBytes)
		if len(data) > 0 {
			return ReadResult{Data: data, Status: ReadData}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return ReadResult{Status: ReadClosed, Err: err}
		}
		if deadline == nil {
			return ReadResult{Status: ReadTimeout}
		}

		select {
		case <-wait:
		case <-deadline:
			return ReadResult{Status: ReadTimeout}
		}
	}
}

// Alive reports whether the process is still running and the channel open
func (c *PtyChannel) Alive() bool {
	return !c.isClosed() && !c.hasExited()
}

// Pid returns the shell's process ID
func (c *PtyChannel) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Done is closed once the shell process has exited
func (c *PtyChannel) Done() <-chan struct{} {
	return c.exited
}

// ExitErr returns the process exit error once Done is closed
func (c *PtyChannel) ExitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

// Dropped returns how many output bytes were discarded because nobody
// drained the buffer in time
func (c *PtyChannel) Dropped() int64 {
	return c.output.Dropped()
}

// Resize changes the PTY window size
func (c *PtyChannel) Resize(cols, rows int) error {
	if !c.Alive() {
		return &StreamError{Op: "resize", Err: ErrChannelClosed}
	}
	return pty.Setsize(c.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

// Close kills the shell and releases the PTY. Safe to call repeatedly.
func (c *PtyChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		if !c.hasExited() && c.cmd.Process != nil {
			if kerr := c.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
				err = fmt.Errorf("failed to kill shell: %w", kerr)
			}
		}

		select {
		case <-c.exited:
		case <-time.After(closeWait):
		}

		if cerr := c.ptmx.Close(); cerr != nil && err == nil && !errors.Is(cerr, os.ErrClosed) {
			err = fmt.Errorf("failed to close pty: %w", cerr)
		}
		c.output.CloseWithError(nil)
	})
	return err
}

func (c *PtyChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *PtyChannel) hasExited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}
