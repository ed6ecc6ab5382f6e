package terminal

import (
	"os"
	"time"
)

// ReadStatus is the outcome of one ReadAvailable call
type ReadStatus int

const (
	// ReadData means at least one byte was returned
	ReadData ReadStatus = iota
	// ReadTimeout means nothing arrived within the timeout; the stream is still open
	ReadTimeout
	// ReadClosed means the stream is closed and fully drained
	ReadClosed
)

// String returns the string representation of the status
func (s ReadStatus) String() string {
	switch s {
	case ReadData:
		return "data"
	case ReadTimeout:
		return "timeout"
	case ReadClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReadResult is the tri-state result of ReadAvailable
type ReadResult struct {
	Data   []byte
	Status ReadStatus
	// Err is the read error that closed the stream, if it was not a clean EOF
	Err error
}

// State is the session lifecycle state
type State int

const (
	StateStarting State = iota
	StateRunning
	StateDead
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Output is the result of one drain
type Output struct {
	// Raw holds the bytes taken from the channel, undecoded
	Raw []byte
	// Text is the decoded output; empty when nothing was ready
	Text   string
	Status ReadStatus
	// DecodeErr is set when Raw could not be decoded; Text is then empty
	DecodeErr *DecodeError
}

// Ready reports whether the drain produced displayable text
func (o Output) Ready() bool {
	return o.Text != ""
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       int       `json:"cols"`
	Rows       int       `json:"rows"`
	Pid        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	State      string    `json:"state"`
	Active     bool      `json:"active"`
	LastError  string    `json:"last_error,omitempty"`
}

// Options configures the shell process and the drain policy
type Options struct {
	Shell      string
	Args       []string
	WorkingDir string
	Env        map[string]string
	Cols       int
	Rows       int

	// BufferSize caps output held between drains; oldest bytes are dropped
	BufferSize int
	// Encoding is the charset of the shell's output (htmlindex name, or
	// "auto" to detect it)
	Encoding string

	CommandTimeout  time.Duration
	CommandReadSize int
	PollTimeout     time.Duration
	PollReadSize    int
	// LockTimeout bounds how long a caller waits for the session lock.
	// Zero leaves the wait bounded only by the caller's context.
	LockTimeout time.Duration
}

// DefaultOptions returns the standard drain policy: a 1s opportunistic
// drain after a command and a 100ms poll.
func DefaultOptions() Options {
	return Options{
		Cols:            80,
		Rows:            24,
		BufferSize:      1024 * 1024,
		Encoding:        "utf-8",
		CommandTimeout:  time.Second,
		CommandReadSize: 1000,
		PollTimeout:     100 * time.Millisecond,
		PollReadSize:    10000,
	}
}

// withDefaults fills zero values from DefaultOptions and the environment
func (o Options) withDefaults() Options {
	def := DefaultOptions()

	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
		if o.Shell == "" {
			o.Shell = "/bin/bash"
		}
	}
	if o.WorkingDir == "" {
		o.WorkingDir = os.Getenv("HOME")
		if o.WorkingDir == "" {
			o.WorkingDir = os.TempDir()
		}
	}
	if o.Cols <= 0 {
		o.Cols = def.Cols
	}
	if o.Rows <= 0 {
		o.Rows = def.Rows
	}
	if o.BufferSize <= 0 {
		o.BufferSize = def.BufferSize
	}
	if o.Encoding == "" {
		o.Encoding = def.Encoding
	}
	if o.CommandReadSize <= 0 {
		o.CommandReadSize = def.CommandReadSize
	}
	if o.PollReadSize <= 0 {
		o.PollReadSize = def.PollReadSize
	}
	// Zero timeouts are meaningful (non-blocking drain); only negatives are reset.
	if o.CommandTimeout < 0 {
		o.CommandTimeout = def.CommandTimeout
	}
	if o.PollTimeout < 0 {
		o.PollTimeout = def.PollTimeout
	}
	if o.LockTimeout < 0 {
		o.LockTimeout = def.LockTimeout
	}
	return o
}
