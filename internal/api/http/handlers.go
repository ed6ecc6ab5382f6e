package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webterm/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
)

// Terminal is the session source the handlers drive. *terminal.Manager
// implements it.
type Terminal interface {
	Current() (*terminal.Session, error)
	Restart() (*terminal.SessionInfo, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	terminal     Terminal
	metrics      *monitoring.Metrics
	tracer       *tracing.Tracer
	logger       *zap.Logger
	allowRestart bool
}

// NewHandlers creates a new handler set
func NewHandlers(term Terminal, metrics *monitoring.Metrics, tracer *tracing.Tracer, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		terminal:     term,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger.Named("http"),
		allowRestart: true,
	}
}

// WithRestart enables or disables POST /session/restart
func (h *Handlers) WithRestart(allow bool) *Handlers {
	h.allowRestart = allow
	return h
}

// Root redirects to the terminal page
func (h *Handlers) Root(c *gin.Context) {
	c.Redirect(http.StatusFound, "/terminal")
}

// Terminal renders the terminal page
func (h *Handlers) Terminal(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := pageTemplate.Execute(c.Writer, pageData{Title: "Terminal"}); err != nil {
		h.logger.Error("Failed to render terminal page", zap.Error(err))
	}
}

// Stdin forwards one keystroke. The key parameter is a decimal character
// code, which is what the browser's key events carry.
func (h *Handlers) Stdin(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.Status(http.StatusOK)
		return
	}

	raw, ok := c.GetQuery("key")
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	code, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		h.respondError(c, terminal.ErrInvalidKey)
		return
	}

	session, err := h.terminal.Current()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Debug("Received key", zap.Int64("code", code))
	if err := session.SendKey(c.Request.Context(), rune(code)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Command submits a full command line. A POST is logged and never executed.
func (h *Handlers) Command(c *gin.Context) {
	if c.Request.Method == http.MethodPost {
		if command, ok := c.GetPostForm("command"); ok {
			h.logger.Info("Received command by POST, not executed", zap.String("command", command))
		}
		c.Status(http.StatusOK)
		return
	}

	command, ok := c.GetQuery("command")
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	session, err := h.terminal.Current()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Received command", zap.String("command", command))
	out, err := session.SendCommand(c.Request.Context(), command)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// a lone partial character means nothing is ready yet
	if out.DecodeErr != nil && out.DecodeErr.Partial {
		c.Status(http.StatusOK)
		return
	}
	renderJSON(c, http.StatusOK, stdoutResponse{Stdout: out.Text})
}

// Read polls for accumulated output
func (h *Handlers) Read(c *gin.Context) {
	session, err := h.terminal.Current()
	if err != nil {
		h.respondError(c, err)
		return
	}

	out, err := session.PollOutput(c.Request.Context())
	if errors.Is(err, terminal.ErrBusy) {
		// another caller holds the session; the client polls again shortly
		renderJSON(c, http.StatusOK, stdoutResponse{})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	if out.Text != "" {
		h.logger.Debug("Returning output", zap.Int("length", len(out.Text)))
	}
	renderJSON(c, http.StatusOK, stdoutResponse{Stdout: out.Text})
}

// Health reports whether the shell is alive
func (h *Handlers) Health(c *gin.Context) {
	resp := healthResponse{Status: "degraded"}

	session, err := h.terminal.Current()
	if err == nil {
		info := session.Info()
		resp.Session = &info
		if info.Active {
			resp.Status = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	renderJSON(c, status, resp)
}

// Session returns the current session's info
func (h *Handlers) Session(c *gin.Context) {
	session, err := h.terminal.Current()
	if err != nil {
		h.respondError(c, err)
		return
	}
	renderJSON(c, http.StatusOK, session.Info())
}

// RestartSession replaces the shell with a fresh one
func (h *Handlers) RestartSession(c *gin.Context) {
	if !h.allowRestart {
		renderJSON(c, http.StatusForbidden, errorResponse{Error: "session restart is disabled"})
		return
	}

	if h.tracer != nil {
		span, _ := h.tracer.StartSpan(c.Request.Context(), "terminal.restart")
		defer func() {
			span.Finish()
			h.tracer.Submit(span)
		}()
	}

	info, err := h.terminal.Restart()
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("Session restarted by request", zap.String("session_id", info.ID))
	renderJSON(c, http.StatusOK, info)
}

// Metrics serves the Prometheus exposition
func (h *Handlers) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// MetricsJSON returns the counter snapshot
func (h *Handlers) MetricsJSON(c *gin.Context) {
	renderJSON(c, http.StatusOK, h.metrics.Snapshot())
}
