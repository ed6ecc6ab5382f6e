// Package terminal bridges one long-lived shell process to concurrent callers.
//
// The shell runs on a PTY (pseudo-terminal) so that it behaves as it would
// for an interactive user. Output is pumped into a bounded buffer by a
// background goroutine; callers drain it with bounded waits instead of
// blocking reads.
//
// Layers:
//   - PtyChannel: owns the child process and its PTY master. Blocking write,
//     plus ReadAvailable(maxBytes, timeout) returning a tri-state result
//     (data, timeout, closed).
//   - Session: the concurrency-safe façade. Every operation takes the
//     session's FIFO lock before touching the channel, so reads and writes
//     are totally ordered and no chunk is ever delivered twice.
//   - Manager: owns the single process-wide Session, its startup, teardown
//     and explicit operator restart.
//
// Drain policy:
//   - SendCommand writes "text\n" then drains for up to CommandTimeout.
//   - PollOutput drains for up to PollTimeout.
//   - A timeout with no bytes is a normal, empty result.
//   - A trailing partial UTF-8 sequence is held back until the next drain;
//     a chunk that is only a partial sequence yields an empty "not ready"
//     output instead of an error.
//   - Encoding "auto" detects a legacy charset the first time output is not
//     valid UTF-8.
//
// Lifecycle:
//
//	Starting -> Running -> Dead
//
// Once the shell exits every operation fails with ErrSessionDead. The session
// never restarts itself; Manager.Restart replaces it with a fresh one,
// optionally behind a resilience.Breaker that stops restart loops when the
// shell keeps failing to spawn.
//
// Example Usage:
//
//	mgr := terminal.NewManager(terminal.DefaultOptions(), logger)
//	if _, err := mgr.Start(); err != nil {
//		// *SpawnError: shell could not be started
//	}
//	defer mgr.Close()
//
//	sess, _ := mgr.Current()
//	out, err := sess.SendCommand(ctx, "echo hi")
//	out, err = sess.PollOutput(ctx)
package terminal
