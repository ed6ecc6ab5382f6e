// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// The terminal manager, session, HTTP handlers and WebSocket streams each
// receive a named child logger; session-scoped lines carry session_id.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "5000"))
//	logger.Error("Failed to spawn shell", zap.Error(err))
package logging
