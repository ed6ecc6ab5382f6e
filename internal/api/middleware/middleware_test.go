package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func okRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/read", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/command", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	return router
}

func get(router http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerIP(t *testing.T) {
	router := okRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(router, "/read").Code)
	assert.Equal(t, http.StatusOK, get(router, "/read").Code)

	w := get(router, "/read")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestGlobalRateLimit(t *testing.T) {
	router := okRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, get(router, "/command").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(router, "/command").Code)
}

func TestCORSAllowAll(t *testing.T) {
	router := okRouter(CORS(DefaultCORSConfig()))

	w := get(router, "/read", "Origin", "http://client.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"http://allowed.example"}
	cfg.AllowCredentials = true
	router := okRouter(CORS(cfg))

	w := get(router, "/read", "Origin", "http://allowed.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://allowed.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = get(router, "/read", "Origin", "http://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	router := okRouter(RequestLogger(zap.New(core), "/read"))

	get(router, "/read")
	get(router, "/command")
	get(router, "/fail")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/command", entries[1].ContextMap()["path"])
	assert.EqualValues(t, 503, entries[2].ContextMap()["status"])
}
