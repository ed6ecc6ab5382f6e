// Package main is the entry point for the web terminal server.
//
// It spawns one shell under a pseudo-terminal and exposes it to a browser:
//
//	Browser → HTTP (/stdin, /command, /read) → Session → PTY → Shell
//	        → WebSocket (/stream)
//
// Configuration:
//   - Environment variables (PORT, HOST, TERMINAL_*, LOG_*, RATE_LIMIT_*, CORS_*)
//   - Optional -config file (YAML or TOML, same keys, env vars win)
//   - CLI flags (override both)
//
// Usage:
//
//	# Default: 0.0.0.0:5000 running $SHELL
//	./server
//
//	# Different shell and port, development logging
//	./server -port 8080 -shell /bin/bash -dev
//
//	# Settings from a file
//	./server -config webterm.yaml
//
// The process exits non-zero if the shell cannot be spawned.
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown (the shell is killed)
package main
