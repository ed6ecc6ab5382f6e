// Package config provides 12-factor configuration for the web terminal.
//
// Configuration is loaded from environment variables with defaults.
// LoadFile additionally reads a flat YAML or TOML file of the same keys;
// variables already in the environment win. CLI flags in cmd/server
// override both.
//
// Configuration Sections:
//   - Server: listen address and shutdown grace period
//   - Terminal: shell, PTY size, output encoding, drain timeouts and read sizes
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - CORS: allowed origins
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	manager := terminal.NewManager(cfg.Terminal.Options(), logger.Logger)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - TERMINAL_SHELL, TERMINAL_WORKDIR, TERMINAL_COLS, TERMINAL_ROWS
//   - TERMINAL_ENCODING, TERMINAL_COMMAND_TIMEOUT, TERMINAL_POLL_TIMEOUT
//   - TERMINAL_COMMAND_READ_SIZE, TERMINAL_POLL_READ_SIZE, TERMINAL_LOCK_TIMEOUT
//   - TERMINAL_BUFFER_SIZE, TERMINAL_ALLOW_RESTART, TERMINAL_STREAM_INTERVAL
//   - TERMINAL_RESTART_MAX_FAILURES, TERMINAL_RESTART_COOLDOWN
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ALLOW_ORIGINS, CORS_ENABLED
package config
