package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Shell = "/bin/sh"
	opts.WorkingDir = "/"
	opts.CommandTimeout = 20 * time.Millisecond
	opts.PollTimeout = 10 * time.Millisecond
	return opts
}

func newTestSession(t *testing.T, ch *fakeChannel) *Session {
	t.Helper()
	s, err := NewSession(ch, testOptions(), nil, monitoring.NewMetrics())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSendCommandWritesLineOnce(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)
	ctx := context.Background()

	commands := []string{"echo one", "ls -la", "", "printf 'a b'"}
	for _, cmd := range commands {
		_, err := s.SendCommand(ctx, cmd)
		require.NoError(t, err)
	}

	var want strings.Builder
	for _, cmd := range commands {
		want.WriteString(cmd + "\n")
	}
	assert.Equal(t, want.String(), string(ch.writtenBytes()))

	// each command is one write followed by one drain
	ops := ch.recordedOps()
	require.Len(t, ops, 2*len(commands))
	for i, cmd := range commands {
		assert.Equal(t, "write:"+cmd+"\n", ops[2*i])
		assert.Equal(t, "read", ops[2*i+1])
	}
}

func TestSendCommandCapturesImmediateOutput(t *testing.T) {
	ch := newFakeChannel("hi\r\n$ ")
	s := newTestSession(t, ch)

	out, err := s.SendCommand(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, ReadData, out.Status)
	assert.True(t, out.Ready())
	assert.Equal(t, "hi\r\n$ ", out.Text)
}

func TestSendCommandNoOutputYet(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)

	out, err := s.SendCommand(context.Background(), "sleep 10")
	require.NoError(t, err)
	assert.Equal(t, ReadTimeout, out.Status)
	assert.False(t, out.Ready())
	assert.Empty(t, out.Raw)
}

func TestPollOutputRespectsReadSize(t *testing.T) {
	ch := newFakeChannel(strings.Repeat("x", 25))
	opts := testOptions()
	opts.PollReadSize = 10
	s, err := NewSession(ch, opts, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		out, err := s.PollOutput(ctx)
		require.NoError(t, err)
		got = append(got, out.Text)
	}
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, got)

	out, err := s.PollOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReadTimeout, out.Status)
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	ch := newFakeChannel()
	ch.opDelay = 2 * time.Millisecond
	s := newTestSession(t, ch)

	for i := 0; i < 20; i++ {
		ch.push(fmt.Sprintf("chunk-%02d|", i))
	}

	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outputs []string
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out Output
			var err error
			if i%2 == 0 {
				out, err = s.SendCommand(ctx, fmt.Sprintf("cmd-%02d", i))
			} else {
				out, err = s.PollOutput(ctx)
			}
			assert.NoError(t, err)
			mu.Lock()
			outputs = append(outputs, out.Text)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&ch.overlaps), "channel saw overlapping operations")

	// no chunk is handed to two callers
	seen := make(map[string]bool)
	for _, text := range outputs {
		if text == "" {
			continue
		}
		assert.False(t, seen[text], "chunk %q delivered twice", text)
		seen[text] = true
	}

	// every command line arrived whole
	written := string(ch.writtenBytes())
	for i := 0; i < 16; i += 2 {
		assert.Contains(t, written, fmt.Sprintf("cmd-%02d\n", i))
	}
}

func TestPartialSequenceIsNotReady(t *testing.T) {
	euro := "€" // e2 82 ac
	ch := newFakeChannel(euro[:2], euro[2:]+"!")
	s := newTestSession(t, ch)
	ctx := context.Background()

	out, err := s.PollOutput(ctx)
	require.NoError(t, err)
	assert.False(t, out.Ready())
	require.NotNil(t, out.DecodeErr)
	assert.True(t, out.DecodeErr.Partial)

	out, err = s.PollOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, "€!", out.Text)
	assert.Nil(t, out.DecodeErr)
}

func TestInvalidBytesDoNotFail(t *testing.T) {
	ch := newFakeChannel("hello world \xff and more valid text\n")
	s := newTestSession(t, ch)

	out, err := s.PollOutput(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Ready())
	assert.Equal(t, "hello world \uFFFD and more valid text\n", out.Text)
	assert.Nil(t, out.DecodeErr)
	assert.Equal(t, StateRunning, s.State())
}

func TestSessionDeadAfterProcessExit(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)
	ctx := context.Background()

	ch.kill()

	require.Eventually(t, func() bool {
		return s.State() == StateDead
	}, time.Second, 5*time.Millisecond)

	_, err := s.SendCommand(ctx, "echo hi")
	assert.ErrorIs(t, err, ErrSessionDead)

	_, err = s.PollOutput(ctx)
	assert.ErrorIs(t, err, ErrSessionDead)

	err = s.SendKey(ctx, 'a')
	assert.ErrorIs(t, err, ErrSessionDead)

	info := s.Info()
	assert.Equal(t, "dead", info.State)
	assert.False(t, info.Active)
	assert.NotEmpty(t, info.LastError)
}

func TestSessionDeadRecordsExitError(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)

	ch.exitWith(errors.New("exit status 3"))

	require.Eventually(t, func() bool {
		return s.State() == StateDead
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Err(), ErrChannelClosed)
	assert.Contains(t, s.Err().Error(), "exit status 3")
	assert.Contains(t, s.Info().LastError, "exit status 3")
}

func TestResize(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)
	ctx := context.Background()

	require.NoError(t, s.Resize(ctx, 132, 43))
	assert.Equal(t, [2]int{132, 43}, ch.size)

	info := s.Info()
	assert.Equal(t, 132, info.Cols)
	assert.Equal(t, 43, info.Rows)

	for _, size := range [][2]int{{0, 24}, {80, -1}, {70000, 24}} {
		err := s.Resize(ctx, size[0], size[1])
		assert.ErrorIs(t, err, ErrInvalidSize, "%v", size)
	}
	assert.Equal(t, []string{"resize"}, ch.recordedOps())

	ch.kill()
	require.Eventually(t, func() bool {
		return s.State() == StateDead
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Resize(ctx, 100, 30), ErrSessionDead)
}

func TestDroppedOutputIsCounted(t *testing.T) {
	ch := newFakeChannel("tail")
	metrics := monitoring.NewMetrics()
	s, err := NewSession(ch, testOptions(), nil, metrics)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	ch.setDropped(7)
	_, err = s.PollOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), metrics.Snapshot().BytesDropped)

	// only the growth since the last drain is added
	ch.setDropped(10)
	_, err = s.PollOutput(ctx)
	require.NoError(t, err)
	_, err = s.PollOutput(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), metrics.Snapshot().BytesDropped)
}

func TestWriteFailureKillsSession(t *testing.T) {
	ch := newFakeChannel()
	ch.writeErr = errors.New("input/output error")
	s := newTestSession(t, ch)

	_, err := s.SendCommand(context.Background(), "echo hi")
	require.ErrorIs(t, err, ErrSessionDead)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "write", streamErr.Op)
	assert.Equal(t, StateDead, s.State())
}

func TestReadClosedKillsSession(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)

	// stream closed while the process handle still reports alive
	ch.mu.Lock()
	ch.alive = false
	ch.mu.Unlock()

	_, err := s.PollOutput(context.Background())
	assert.ErrorIs(t, err, ErrSessionDead)
	assert.Equal(t, StateDead, s.State())
}

func TestLockTimeoutReturnsBusy(t *testing.T) {
	ch := newFakeChannel()
	opts := testOptions()
	opts.PollTimeout = 200 * time.Millisecond
	opts.LockTimeout = 20 * time.Millisecond
	s, err := NewSession(ch, opts, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	started := make(chan struct{})
	go func() {
		close(started)
		s.PollOutput(ctx)
	}()
	<-started
	time.Sleep(40 * time.Millisecond)

	_, err = s.PollOutput(ctx)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestLockWaitIsBoundedByContextByDefault(t *testing.T) {
	assert.Zero(t, DefaultOptions().LockTimeout)

	ch := newFakeChannel()
	opts := testOptions()
	opts.PollTimeout = 150 * time.Millisecond
	s, err := NewSession(ch, opts, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	started := make(chan struct{})
	go func() {
		close(started)
		s.PollOutput(ctx)
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	// a slow holder delays the key; it does not reject it
	require.NoError(t, s.SendKey(ctx, 'a'))
	assert.Equal(t, "a", string(ch.writtenBytes()))
}

func TestCancelledContextDoesNotTouchChannel(t *testing.T) {
	ch := newFakeChannel()
	opts := testOptions()
	opts.PollTimeout = 100 * time.Millisecond
	s, err := NewSession(ch, opts, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	go s.PollOutput(context.Background())
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.SendKey(ctx, '\n')
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ch.writtenBytes())
}

func TestSendKey(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)
	ctx := context.Background()

	require.NoError(t, s.SendKey(ctx, 'l'))
	require.NoError(t, s.SendKey(ctx, 's'))
	require.NoError(t, s.SendKey(ctx, 10))
	require.NoError(t, s.SendKey(ctx, 'é'))

	assert.Equal(t, "ls\né", string(ch.writtenBytes()))

	err := s.SendKey(ctx, -1)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSendRaw(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)

	require.NoError(t, s.SendRaw(context.Background(), []byte{0x1b, '[', 'A'}))
	assert.Equal(t, []byte{0x1b, '[', 'A'}, ch.writtenBytes())
}

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name    string
		code    rune
		want    []byte
		wantErr bool
	}{
		{name: "newline", code: 10, want: []byte{'\n'}},
		{name: "carriage return", code: 13, want: []byte{'\r'}},
		{name: "ctrl-c", code: 3, want: []byte{0x03}},
		{name: "printable", code: 'a', want: []byte{'a'}},
		{name: "latin-1 code point", code: 0xe9, want: []byte{0xc3, 0xa9}},
		{name: "code 200 is not a raw byte", code: 200, want: []byte{0xc3, 0x88}},
		{name: "negative", code: -5, wantErr: true},
		{name: "surrogate", code: 0xd800, wantErr: true},
		{name: "beyond unicode", code: 0x110000, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeKey(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionInfo(t *testing.T) {
	ch := newFakeChannel()
	s := newTestSession(t, ch)

	info := s.Info()
	assert.True(t, strings.HasPrefix(info.ID, "sess_"))
	assert.Equal(t, "/bin/sh", info.Shell)
	assert.Equal(t, 80, info.Cols)
	assert.Equal(t, 24, info.Rows)
	assert.Equal(t, 4242, info.Pid)
	assert.Equal(t, "running", info.State)
	assert.True(t, info.Active)
	assert.Empty(t, info.LastError)
}

func TestUnknownEncodingRejected(t *testing.T) {
	opts := testOptions()
	opts.Encoding = "klingon-8"
	_, err := NewSession(newFakeChannel(), opts, nil, nil)
	assert.Error(t, err)
}
