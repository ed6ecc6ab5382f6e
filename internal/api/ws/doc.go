// Package ws streams the shell session over a WebSocket.
//
// The connection replaces the /stdin + /read polling pair with one socket.
// The server drains the session every stream interval and pushes whatever
// arrived. Output chunks are consumed once, so a browser should use either
// the socket or /read, not both.
//
// Message Types (Client → Server):
//   - key: {"type":"key","code":13}
//   - command: {"type":"command","command":"ls -la"}
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - output: {"type":"output","stdout":"..."}
//   - exit: the shell is gone; the server closes the socket
//   - pong: reply to ping
//   - error: a rejected frame
//
// Example Usage:
//
//	handler := ws.NewHandler(manager, metrics, logger, 100*time.Millisecond)
//	router.GET("/stream", handler.HandleConnection)
package ws
