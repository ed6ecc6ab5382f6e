package terminal

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/resilience"
)

// Manager owns the single process-wide shell session.
//
// The session is created by Start at startup and torn down by Close at
// shutdown. A dead session stays in place (so callers keep getting
// ErrSessionDead) until an operator calls Restart.
type Manager struct {
	opts    Options
	spawn   SpawnFunc
	logger  *zap.Logger
	metrics *monitoring.Metrics
	guard   *resilience.Breaker

	mu      sync.RWMutex
	current *Session
	closed  bool
}

// NewManager creates a new session manager
func NewManager(opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:   opts,
		spawn:  SpawnPty,
		logger: logger.Named("terminal"),
	}
}

// WithMetrics attaches a metrics collector
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// WithSpawner replaces the PTY spawner
func (m *Manager) WithSpawner(spawn SpawnFunc) *Manager {
	m.spawn = spawn
	return m
}

// WithRestartGuard makes Restart fail fast with resilience.ErrCircuitOpen
// after repeated spawn failures
func (m *Manager) WithRestartGuard(guard *resilience.Breaker) *Manager {
	m.guard = guard
	return m
}

// Start spawns the shell. A *SpawnError here is fatal for the process.
func (m *Manager) Start() (*SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("manager closed: %w", ErrNoSession)
	}
	if m.current != nil {
		info := m.current.Info()
		return &info, nil
	}

	session, err := open(m.opts, m.spawn, m.logger, m.metrics)
	if err != nil {
		return nil, err
	}
	m.current = session

	info := session.Info()
	return &info, nil
}

// Current returns the active session, which may be dead
func (m *Manager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil, ErrNoSession
	}
	return m.current, nil
}

// Info returns the current session's info
func (m *Manager) Info() (*SessionInfo, error) {
	session, err := m.Current()
	if err != nil {
		return nil, err
	}
	info := session.Info()
	return &info, nil
}

// Restart closes the current session and spawns a fresh shell. Output
// buffered by the old shell is discarded. While the restart guard is open
// the current session is left untouched.
func (m *Manager) Restart() (*SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("manager closed: %w", ErrNoSession)
	}

	var info SessionInfo
	err := m.guard.Do(func() error {
		if m.current != nil {
			old := m.current
			m.current = nil
			m.logger.Info("Replacing shell session",
				zap.String("session_id", old.ID().String()),
				zap.String("state", old.State().String()),
				zap.NamedError("cause", old.Err()),
			)
			if err := old.Close(); err != nil {
				m.logger.Warn("Failed to close previous session",
					zap.String("session_id", old.ID().String()),
					zap.Error(err),
				)
			}
		}

		session, err := open(m.opts, m.spawn, m.logger, m.metrics)
		if err != nil {
			return err
		}
		m.current = session
		info = session.Info()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}

	m.logger.Info("Shell session restarted", zap.String("session_id", info.ID))
	return &info, nil
}

// Close terminates the session. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}
