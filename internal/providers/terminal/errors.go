package terminal

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionDead is returned by every operation once the shell has exited.
	ErrSessionDead = errors.New("shell session is dead")

	// ErrBusy is returned when the session lock could not be acquired in time.
	ErrBusy = errors.New("shell session is busy")

	// ErrChannelClosed reports a process channel whose process exited or was closed.
	ErrChannelClosed = errors.New("process channel closed")

	// ErrNoSession is returned by the manager before Start has succeeded.
	ErrNoSession = errors.New("no shell session started")

	// ErrInvalidKey rejects character codes outside the Unicode range.
	ErrInvalidKey = errors.New("invalid character code")

	// ErrInvalidSize rejects window sizes outside 1..65535.
	ErrInvalidSize = errors.New("invalid window size")

	// ErrResizeUnsupported is returned when the channel has no window size.
	ErrResizeUnsupported = errors.New("channel cannot be resized")

	ErrIncompleteSequence = errors.New("incomplete multi-byte sequence")
)

// SpawnError reports a shell that could not be started.
type SpawnError struct {
	Shell string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start shell %q: %v", e.Shell, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StreamError reports a broken input or output stream.
type StreamError struct {
	Op  string // "write" or "read"
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// DecodeError reports output bytes that could not be turned into text.
// Partial is set when the bytes are the start of a character whose
// remainder has not arrived yet.
type DecodeError struct {
	Partial bool
	Bytes   int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d bytes: %v", e.Bytes, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
