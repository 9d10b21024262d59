package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meetprobe/internal/infrastructure/livekit"
	"meetprobe/pkg/config"
	"meetprobe/pkg/errors"
	"meetprobe/pkg/logger"
)

func serve(router *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHTTPRateLimitMiddleware_Disabled_AllowsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = false

	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", nil).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", nil).Code)
}

func TestHTTPRateLimitMiddleware_Enabled_RateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 1
	cfg.RateLimiting.HTTP.Burst = 1
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	router := gin.New()
	router.Use(NewHTTPRateLimitMiddleware(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", nil).Code)

	w := serve(router, http.MethodGet, "/test", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(errors.ErrCodeRateLimit), body["error"])

	// a different forwarded client has its own bucket
	other := http.Header{"X-Forwarded-For": {"10.0.0.9, 10.0.0.1"}}
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/test", other).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4242"
	assert.Equal(t, "192.168.1.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage")
	assert.Equal(t, "192.168.1.5", clientIP(req))
}

func TestErrorHandlerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.GET("/app", func(c *gin.Context) {
		_ = c.Error(errors.NewNotFoundError("participant").WithContext("identity", "bob"))
	})
	router.GET("/plain", func(c *gin.Context) {
		_ = c.Error(stderrors.New("boom"))
	})

	w := serve(router, http.MethodGet, "/app", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"])
	assert.Equal(t, "participant not found", body["message"])
	assert.Equal(t, map[string]any{"identity": "bob"}, body["details"])

	w = serve(router, http.MethodGet, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryMiddleware(zap.NewNop().Sugar()))
	router.GET("/panic", func(c *gin.Context) { panic("bad handler") })

	w := serve(router, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen string
	router := gin.New()
	router.Use(RequestLogger(logger.NewContextLogger(zap.NewNop())))
	router.GET("/id", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIDKey).(string)
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/id", http.Header{RequestIDHeader: {"req-1"}})
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-1", seen)

	w = serve(router, http.MethodGet, "/id", nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, w.Header().Get(RequestIDHeader), seen)
}

func TestControlAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	minter, err := livekit.NewTokenMinter("devkey", "secret", time.Hour)
	require.NoError(t, err)
	token, err := minter.Mint("TestRoom", "driver", "Driver")
	require.NoError(t, err)

	var identity string
	router := gin.New()
	router.Use(ControlAuthMiddleware(minter))
	router.GET("/state", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/join", func(c *gin.Context) {
		identity = c.GetString("identity")
		c.Status(http.StatusAccepted)
	})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/state", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/join", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/join", http.Header{"Authorization": {"Token " + token}}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/join", http.Header{"Authorization": {"Bearer nope"}}).Code)

	w := serve(router, http.MethodPost, "/join", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "driver", identity)
}
