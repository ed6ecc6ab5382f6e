package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"5000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// TerminalConfig holds shell session configuration.
type TerminalConfig struct {
	Shell           string        `envconfig:"TERMINAL_SHELL"`
	WorkingDir      string        `envconfig:"TERMINAL_WORKDIR"`
	Cols            int           `envconfig:"TERMINAL_COLS" default:"80"`
	Rows            int           `envconfig:"TERMINAL_ROWS" default:"24"`
	Encoding        string        `envconfig:"TERMINAL_ENCODING" default:"utf-8"`
	CommandTimeout  time.Duration `envconfig:"TERMINAL_COMMAND_TIMEOUT" default:"1s"`
	PollTimeout     time.Duration `envconfig:"TERMINAL_POLL_TIMEOUT" default:"100ms"`
	CommandReadSize int           `envconfig:"TERMINAL_COMMAND_READ_SIZE" default:"1000"`
	PollReadSize    int           `envconfig:"TERMINAL_POLL_READ_SIZE" default:"10000"`
	LockTimeout     time.Duration `envconfig:"TERMINAL_LOCK_TIMEOUT" default:"0s"`
	BufferSize      int           `envconfig:"TERMINAL_BUFFER_SIZE" default:"1048576"`
	AllowRestart    bool          `envconfig:"TERMINAL_ALLOW_RESTART" default:"true"`
	StreamInterval  time.Duration `envconfig:"TERMINAL_STREAM_INTERVAL" default:"100ms"`

	RestartMaxFailures uint32        `envconfig:"TERMINAL_RESTART_MAX_FAILURES" default:"3"`
	RestartCooldown    time.Duration `envconfig:"TERMINAL_RESTART_COOLDOWN" default:"30s"`
}

// Options converts the configuration to session options.
func (t TerminalConfig) Options() terminal.Options {
	opts := terminal.DefaultOptions()
	opts.Shell = t.Shell
	opts.WorkingDir = t.WorkingDir
	opts.Encoding = t.Encoding
	opts.CommandTimeout = t.CommandTimeout
	opts.PollTimeout = t.PollTimeout
	opts.LockTimeout = t.LockTimeout

	if t.Cols > 0 {
		opts.Cols = t.Cols
	}
	if t.Rows > 0 {
		opts.Rows = t.Rows
	}
	if t.CommandReadSize > 0 {
		opts.CommandReadSize = t.CommandReadSize
	}
	if t.PollReadSize > 0 {
		opts.PollReadSize = t.PollReadSize
	}
	if t.BufferSize > 0 {
		opts.BufferSize = t.BufferSize
	}
	return opts
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig holds cross-origin configuration.
type CORSConfig struct {
	AllowOrigins []string `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	Enabled      bool     `envconfig:"CORS_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the terminal cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "PORT must not be empty")
	}
	if c.Terminal.Cols < 0 || c.Terminal.Rows < 0 {
		problems = append(problems, "TERMINAL_COLS and TERMINAL_ROWS must not be negative")
	}
	if c.Terminal.CommandTimeout < 0 || c.Terminal.PollTimeout < 0 || c.Terminal.LockTimeout < 0 {
		problems = append(problems, "terminal timeouts must not be negative")
	}
	if c.Terminal.StreamInterval <= 0 {
		problems = append(problems, "TERMINAL_STREAM_INTERVAL must be positive")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "5000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Terminal: TerminalConfig{
			Cols:            80,
			Rows:            24,
			Encoding:        "utf-8",
			CommandTimeout:  time.Second,
			PollTimeout:     100 * time.Millisecond,
			CommandReadSize: 1000,
			PollReadSize:    10000,
			BufferSize:      1 << 20,
			AllowRestart:    true,
			StreamInterval:  100 * time.Millisecond,

			RestartMaxFailures: 3,
			RestartCooldown:    30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			Enabled:      true,
		},
	}
}
