package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

// Register mounts the terminal routes on router
func (h *Handlers) Register(router *gin.Engine) {
	router.HandleMethodNotAllowed = true

	router.GET("/", h.Root)
	router.GET("/terminal", h.Terminal)
	static := gin.WrapH(gzhttp.GzipHandler(http.StripPrefix("/static", http.FileServer(http.FS(StaticFS())))))
	router.GET("/static/*filepath", static)
	router.HEAD("/static/*filepath", static)

	// Terminal I/O
	router.GET("/stdin", h.Stdin)
	router.POST("/stdin", h.Stdin)
	router.GET("/command", h.Command)
	router.POST("/command", h.Command)
	router.GET("/read", h.Read)

	// Session management
	router.GET("/health", h.Health)
	router.GET("/session", h.Session)
	router.POST("/session/restart", h.RestartSession)

	// Metrics
	router.GET("/metrics", h.Metrics)
	router.GET("/metrics/json", h.MetricsJSON)
}
