package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webterm/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webterm/internal/providers/terminal"
	"github.com/GriffinCanCode/webterm/internal/shared/id"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	closeGrace     = time.Second
)

// Sessions is the session source for streams. *terminal.Manager implements it.
type Sessions interface {
	Current() (*terminal.Session, error)
}

// Handler manages WebSocket connections
type Handler struct {
	sessions Sessions
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler that drains the session every
// interval.
func NewHandler(sessions Sessions, metrics *monitoring.Metrics, logger *zap.Logger, interval time.Duration) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Handler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.Named("ws"),
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// conn serializes writes to one socket
type conn struct {
	ws      *websocket.Conn
	id      id.ConnectionID
	metrics *monitoring.Metrics
	mu      sync.Mutex
}

func (c *conn) send(msg ServerMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out", msg.Type)
	return nil
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *conn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

// HandleConnection handles WebSocket upgrade and messages
func (h *Handler) HandleConnection(c *gin.Context) {
	session, err := h.sessions.Current()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	cn := &conn{ws: ws, id: id.NewConnectionID(), metrics: h.metrics}
	logger := h.logger.With(
		zap.String("conn_id", cn.id.String()),
		zap.String("session_id", session.ID().String()),
	)

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()
	logger.Info("Stream opened")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.pump(ctx, cn, session, logger)
		// unblock readLoop if the client never answers the close frame
		ws.SetReadDeadline(time.Now().Add(closeGrace))
	}()

	h.readLoop(ctx, cn, session, logger)
	cancel()
	wg.Wait()
	logger.Info("Stream closed")
}

// readLoop handles client frames until the socket closes
func (h *Handler) readLoop(ctx context.Context, cn *conn, session *terminal.Session, logger *zap.Logger) {
	cn.ws.SetReadLimit(maxMessageSize)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			cn.send(ServerMessage{Type: TypeError, Message: "malformed frame"})
			continue
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		if err := h.dispatch(ctx, cn, session, msg); err != nil {
			if errors.Is(err, terminal.ErrSessionDead) {
				return
			}
			logger.Debug("Frame rejected", zap.String("type", msg.Type), zap.Error(err))
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, cn *conn, session *terminal.Session, msg ClientMessage) error {
	switch msg.Type {
	case TypeKey:
		if msg.Code == nil {
			return cn.send(ServerMessage{Type: TypeError, Message: "key frame without code"})
		}
		// range-check before narrowing to rune so large codes cannot wrap
		code := *msg.Code
		if code < 0 || code > utf8.MaxRune {
			return h.reportError(cn, fmt.Errorf("%w: %d", terminal.ErrInvalidKey, code))
		}
		return h.reportError(cn, session.SendKey(ctx, rune(code)))

	case TypeCommand:
		out, err := session.SendCommand(ctx, msg.Command)
		if err != nil {
			return h.reportError(cn, err)
		}
		if out.Text != "" {
			return cn.send(ServerMessage{Type: TypeOutput, Stdout: out.Text})
		}
		return nil

	case TypeResize:
		return h.reportError(cn, session.Resize(ctx, msg.Cols, msg.Rows))

	case TypePing:
		return cn.send(ServerMessage{Type: TypePong})

	default:
		return cn.send(ServerMessage{Type: TypeError, Message: "unknown message type"})
	}
}

// reportError tells the client why a frame failed. A dead session ends the stream.
func (h *Handler) reportError(cn *conn, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, terminal.ErrSessionDead):
		cn.send(ServerMessage{Type: TypeExit, Message: err.Error()})
		cn.close(websocket.CloseNormalClosure, "session ended")
		return err
	default:
		cn.send(ServerMessage{Type: TypeError, Message: err.Error()})
		return err
	}
}

// pump drains the session on every tick and pushes output
func (h *Handler) pump(ctx context.Context, cn *conn, session *terminal.Session, logger *zap.Logger) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	pinger := time.NewTicker(pingPeriod)
	defer pinger.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pinger.C:
			if err := cn.ping(); err != nil {
				return
			}
		case <-ticker.C:
			out, err := session.PollOutput(ctx)
			if errors.Is(err, terminal.ErrBusy) {
				continue
			}
			if err != nil {
				if errors.Is(err, terminal.ErrSessionDead) {
					logger.Info("Session ended, closing stream")
				}
				h.reportError(cn, err)
				return
			}
			if out.Text == "" {
				continue
			}
			if err := cn.send(ServerMessage{Type: TypeOutput, Stdout: out.Text}); err != nil {
				logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		}
	}
}
