package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/config"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
)

// idleChannel is a shell that never prints anything
type idleChannel struct {
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (c *idleChannel) Write(p []byte) error        { return nil }
func (c *idleChannel) WriteLine(text string) error { return nil }

func (c *idleChannel) ReadAvailable(int, time.Duration) terminal.ReadResult {
	return terminal.ReadResult{Status: terminal.ReadTimeout}
}

func (c *idleChannel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *idleChannel) Pid() int              { return 1 }
func (c *idleChannel) Done() <-chan struct{} { return c.done }

func (c *idleChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Logging.Development = true
	cfg.RateLimit.Enabled = false
	return cfg
}

func testLogger() *logging.Logger {
	return &logging.Logger{Logger: zap.NewNop()}
}

func TestNewServerRoutes(t *testing.T) {
	ch := &idleChannel{done: make(chan struct{})}
	srv, err := NewServer(testConfig(), testLogger(), WithSpawner(func(terminal.Options) (terminal.Channel, error) {
		return ch, nil
	}))
	require.NoError(t, err)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusFound},
		{http.MethodGet, "/terminal", http.StatusOK},
		{http.MethodGet, "/read", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/session", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/read", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, "%s %s", tt.method, tt.path)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.False(t, ch.Alive())
}

func TestNewServerSpawnFailure(t *testing.T) {
	_, err := NewServer(testConfig(), testLogger(), WithSpawner(func(opts terminal.Options) (terminal.Channel, error) {
		return nil, &terminal.SpawnError{Shell: opts.Shell, Err: errors.New("no such file")}
	}))
	require.Error(t, err)

	var spawnErr *terminal.SpawnError
	assert.ErrorAs(t, err, &spawnErr)
}

func TestRestartDisabledByConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Terminal.AllowRestart = false

	srv, err := NewServer(cfg, testLogger(), WithSpawner(func(terminal.Options) (terminal.Channel, error) {
		return &idleChannel{done: make(chan struct{})}, nil
	}))
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/restart", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
