package terminal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webterm/internal/shared/id"
)

// Session is the concurrency-safe façade over one process channel.
//
// All channel access goes through a weighted semaphore of size one. Waiters
// are served in arrival order, so writes and drains are totally ordered.
type Session struct {
	id        id.SessionID
	opts      Options
	startedAt time.Time

	channel Channel
	decoder *Decoder
	lock    *semaphore.Weighted
	// dropped is the channel's overflow count at the last drain
	dropped int64

	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	state   State
	lastErr error
}

// Open spawns a shell with the default PTY spawner and wraps it in a session
func Open(opts Options, logger *zap.Logger, metrics *monitoring.Metrics) (*Session, error) {
	return open(opts, SpawnPty, logger, metrics)
}

func open(opts Options, spawn SpawnFunc, logger *zap.Logger, metrics *monitoring.Metrics) (*Session, error) {
	opts = opts.withDefaults()

	decoder, err := NewDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	s := newSession(opts, decoder, logger, metrics)

	channel, err := spawn(opts)
	if err != nil {
		s.markDead(err)
		return nil, err
	}

	s.attach(channel)
	return s, nil
}

// NewSession wraps an already running channel
func NewSession(channel Channel, opts Options, logger *zap.Logger, metrics *monitoring.Metrics) (*Session, error) {
	opts = opts.withDefaults()

	decoder, err := NewDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}

	s := newSession(opts, decoder, logger, metrics)
	s.attach(channel)
	return s, nil
}

func newSession(opts Options, decoder *Decoder, logger *zap.Logger, metrics *monitoring.Metrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	sid := id.NewSessionID()

	s := &Session{
		id:      sid,
		opts:    opts,
		decoder: decoder,
		lock:    semaphore.NewWeighted(1),
		logger:  logger.With(zap.String("session_id", sid.String())),
		metrics: metrics,
		state:   StateStarting,
	}
	metrics.SetSessionState(int(StateStarting))
	return s
}

// attach moves the session to Running and starts watching for process exit
func (s *Session) attach(channel Channel) {
	s.mu.Lock()
	s.channel = channel
	s.startedAt = time.Now()
	s.state = StateRunning
	s.mu.Unlock()

	s.metrics.SetSessionState(int(StateRunning))
	s.metrics.IncSessionsStarted()
	s.logger.Info("Shell session started",
		zap.String("shell", s.opts.Shell),
		zap.String("working_dir", s.opts.WorkingDir),
		zap.Int("pid", channel.Pid()),
	)

	go s.watch(channel)
}

// watch marks the session dead as soon as the process exits
func (s *Session) watch(channel Channel) {
	<-channel.Done()

	var cause error = ErrChannelClosed
	if r, ok := channel.(exitReporter); ok {
		if err := r.ExitErr(); err != nil {
			cause = fmt.Errorf("%w: %w", ErrChannelClosed, err)
		}
	}
	s.markDead(cause)
}

// ID returns the session identifier
func (s *Session) ID() id.SessionID {
	return s.id
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that ended the session, if any
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Info returns a snapshot of the session
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := SessionInfo{
		ID:         s.id.String(),
		Shell:      s.opts.Shell,
		WorkingDir: s.opts.WorkingDir,
		Cols:       s.opts.Cols,
		Rows:       s.opts.Rows,
		StartedAt:  s.startedAt,
		State:      s.state.String(),
		Active:     s.state == StateRunning,
	}
	if s.channel != nil {
		info.Pid = s.channel.Pid()
	}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}

// SendKey writes one character code. Codes below 0x80 are sent as a single
// byte; larger code points are UTF-8 encoded. Does not wait for output.
func (s *Session) SendKey(ctx context.Context, code rune) error {
	p, err := EncodeKey(code)
	if err != nil {
		return err
	}
	return s.write(ctx, "key", p)
}

// SendRaw writes raw bytes unchanged. Does not wait for output.
func (s *Session) SendRaw(ctx context.Context, p []byte) error {
	return s.write(ctx, "raw", p)
}

// SendCommand submits text followed by a newline, then drains for up to
// CommandTimeout. An Output with Status ReadTimeout means nothing arrived
// yet; poll with PollOutput.
func (s *Session) SendCommand(ctx context.Context, text string) (Output, error) {
	timer := monitoring.NewTimer(s.metrics, "command")

	release, err := s.acquire(ctx)
	if err != nil {
		timer.Stop("busy")
		return Output{}, err
	}
	defer release()

	if err := s.checkAlive(); err != nil {
		timer.Stop("dead")
		return Output{}, err
	}

	if err := s.channel.WriteLine(text); err != nil {
		timer.Stop("dead")
		return Output{}, s.fail(err)
	}
	s.metrics.AddBytesWritten(len(text) + 1)
	s.logger.Debug("Command submitted", zap.Int("bytes", len(text)+1))

	out, err := s.drain("command", s.opts.CommandReadSize, s.opts.CommandTimeout)
	if err != nil {
		timer.Stop("dead")
		return out, err
	}
	timer.Stop("success")
	return out, nil
}

// PollOutput drains whatever output accumulated, waiting up to PollTimeout
func (s *Session) PollOutput(ctx context.Context) (Output, error) {
	timer := monitoring.NewTimer(s.metrics, "poll")

	release, err := s.acquire(ctx)
	if err != nil {
		timer.Stop("busy")
		return Output{}, err
	}
	defer release()

	if err := s.checkAlive(); err != nil {
		timer.Stop("dead")
		return Output{}, err
	}

	out, err := s.drain("poll", s.opts.PollReadSize, s.opts.PollTimeout)
	if err != nil {
		timer.Stop("dead")
		return out, err
	}
	timer.Stop("success")
	return out, nil
}

// Resize changes the terminal window size
func (s *Session) Resize(ctx context.Context, cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > math.MaxUint16 || rows > math.MaxUint16 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}

	timer := monitoring.NewTimer(s.metrics, "resize")

	release, err := s.acquire(ctx)
	if err != nil {
		timer.Stop("busy")
		return err
	}
	defer release()

	if err := s.checkAlive(); err != nil {
		timer.Stop("dead")
		return err
	}

	resizer, ok := s.channel.(Resizer)
	if !ok {
		timer.Stop("error")
		return ErrResizeUnsupported
	}
	if err := resizer.Resize(cols, rows); err != nil {
		timer.Stop("error")
		return fmt.Errorf("resize: %w", err)
	}

	s.mu.Lock()
	s.opts.Cols, s.opts.Rows = cols, rows
	s.mu.Unlock()

	s.logger.Debug("Terminal resized", zap.Int("cols", cols), zap.Int("rows", rows))
	timer.Stop("success")
	return nil
}

// Close kills the shell. The session becomes Dead.
func (s *Session) Close() error {
	s.mu.RLock()
	channel := s.channel
	s.mu.RUnlock()

	s.markDead(errSessionClosed)
	if channel == nil {
		return nil
	}
	return channel.Close()
}

var errSessionClosed = errors.New("session closed")

func (s *Session) write(ctx context.Context, op string, p []byte) error {
	timer := monitoring.NewTimer(s.metrics, op)

	release, err := s.acquire(ctx)
	if err != nil {
		timer.Stop("busy")
		return err
	}
	defer release()

	if err := s.checkAlive(); err != nil {
		timer.Stop("dead")
		return err
	}

	if err := s.channel.Write(p); err != nil {
		timer.Stop("dead")
		return s.fail(err)
	}
	s.metrics.AddBytesWritten(len(p))
	timer.Stop("success")
	return nil
}

// drain performs one bounded read and decodes it. Caller holds the lock.
func (s *Session) drain(op string, maxBytes int, timeout time.Duration) (Output, error) {
	res := s.channel.ReadAvailable(maxBytes, timeout)
	s.metrics.RecordDrain(op, res.Status.String(), len(res.Data))
	s.recordDropped()

	switch res.Status {
	case ReadTimeout:
		return Output{Status: ReadTimeout}, nil
	case ReadClosed:
		err := res.Err
		if err == nil {
			err = ErrChannelClosed
		}
		return Output{Status: ReadClosed}, s.fail(&StreamError{Op: "read", Err: err})
	}

	out := Output{Raw: res.Data, Status: ReadData}

	text, err := s.decoder.Decode(res.Data)
	if err != nil {
		var decErr *DecodeError
		if !errors.As(err, &decErr) {
			decErr = &DecodeError{Bytes: len(res.Data), Err: err}
		}
		kind := "invalid"
		if decErr.Partial {
			kind = "partial"
		}
		s.metrics.RecordDecodeError(kind)
		s.logger.Debug("Output not decodable yet",
			zap.String("op", op),
			zap.String("kind", kind),
			zap.Int("bytes", len(res.Data)),
			zap.Error(err),
		)
		out.DecodeErr = decErr
		return out, nil
	}

	out.Text = text
	return out, nil
}

// recordDropped publishes output lost to overflow since the last drain.
// Caller holds the lock.
func (s *Session) recordDropped() {
	r, ok := s.channel.(dropReporter)
	if !ok {
		return
	}
	total := r.Dropped()
	if total <= s.dropped {
		return
	}
	s.metrics.AddOutputDropped(total - s.dropped)
	s.logger.Warn("Shell output dropped before it was drained",
		zap.Int64("bytes", total-s.dropped),
		zap.Int("buffer_size", s.opts.BufferSize),
	)
	s.dropped = total
}

// acquire takes the session lock, bounded by ctx and LockTimeout
func (s *Session) acquire(ctx context.Context) (func(), error) {
	if s.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.LockTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	s.metrics.ObserveLockWait(time.Since(start))

	return func() { s.lock.Release(1) }, nil
}

// checkAlive returns ErrSessionDead once the shell is gone. Caller holds the lock.
func (s *Session) checkAlive() error {
	s.mu.RLock()
	state, lastErr, channel := s.state, s.lastErr, s.channel
	s.mu.RUnlock()

	if state == StateDead {
		return deadError(lastErr)
	}
	if channel == nil || !channel.Alive() {
		s.markDead(ErrChannelClosed)
		return deadError(ErrChannelClosed)
	}
	return nil
}

// fail records a stream failure and converts it to ErrSessionDead
func (s *Session) fail(err error) error {
	s.markDead(err)
	return deadError(err)
}

func (s *Session) markDead(err error) {
	s.mu.Lock()
	if s.state == StateDead {
		s.mu.Unlock()
		return
	}
	s.state = StateDead
	s.lastErr = err
	s.mu.Unlock()

	s.metrics.SetSessionState(int(StateDead))
	s.logger.Warn("Shell session is dead", zap.Error(err))
}

func deadError(cause error) error {
	if cause == nil {
		return ErrSessionDead
	}
	return fmt.Errorf("%w: %w", ErrSessionDead, cause)
}

// EncodeKey converts a character code to the bytes sent to the shell
func EncodeKey(code rune) ([]byte, error) {
	if code < 0 || code > utf8.MaxRune || !utf8.ValidRune(code) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKey, code)
	}
	if code < utf8.RuneSelf {
		return []byte{byte(code)}, nil
	}
	return utf8.AppendRune(nil, code), nil
}
