package http

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
)

type stdoutResponse struct {
	Stdout string `json:"stdout"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string                `json:"status"`
	Session *terminal.SessionInfo `json:"session,omitempty"`
}

// renderJSON encodes v with sonic
func renderJSON(c *gin.Context, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.Error(err)
		c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", []byte(`{"error":"failed to encode response"}`))
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

// statusFor maps terminal errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, terminal.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, terminal.ErrSessionDead),
		errors.Is(err, terminal.ErrNoSession),
		errors.Is(err, terminal.ErrBusy),
		errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		var spawnErr *terminal.SpawnError
		if errors.As(err, &spawnErr) {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
}

// respondError writes the one error shape every route uses
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	c.Error(err)

	if status >= http.StatusInternalServerError {
		h.logger.Warn("Terminal request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	renderJSON(c, status, errorResponse{Error: err.Error()})
}
