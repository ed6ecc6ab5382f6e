// Package http exposes the shell session over plain HTTP.
//
// Routes:
//   - GET  /                  redirect to /terminal
//   - GET  /terminal          terminal page; script at /static/terminal.js
//   - GET  /stdin?key=N       send character code N
//   - GET  /command?command=  submit a line and return {"stdout": ...}
//   - POST /command           logged, never executed
//   - GET  /read              poll output, {"stdout": ...}
//   - GET  /health, /session  session state
//   - POST /session/restart   spawn a fresh shell
//   - GET  /metrics           Prometheus exposition
//
// Transient conditions (no output yet, a split character, a busy poll)
// degrade to empty output. A dead shell is a 503 with {"error": ...}.
package http
