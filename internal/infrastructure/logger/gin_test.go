package logger

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

func newTestRouter(t *testing.T, l *zap.Logger, pre ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(Recovery(l), GinMiddleware(l))
	return r
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddleware_LogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, zap.New(core), func(c *gin.Context) {
		c.Set("request_id", "req-1")
	})
	r.GET("/api/v1/credits/:id", func(c *gin.Context) {
		c.Set("actor", "ops")
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/api/v1/credits/42?expand=solutions")
	assert.Equal(t, http.StatusOK, w.Code)

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "/api/v1/credits/:id", fields["route"])
	assert.Equal(t, "expand=solutions", fields["query"])
	assert.Equal(t, "ops", fields["actor"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
}

func TestGinMiddleware_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, zap.New(core))
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusUnprocessableEntity) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	serve(r, http.MethodGet, "/bad")
	serve(r, http.MethodGet, "/broken")

	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestGinMiddleware_RequestContextCarriesLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, zap.New(core), func(c *gin.Context) {
		c.Set("request_id", "req-9")
	})
	r.POST("/api/v1/sweeps", func(c *gin.Context) {
		ctx := c.Request.Context()
		assert.Equal(t, "req-9", GetRequestID(ctx))
		FromContext(ctx).Info("sweep requested")
		c.Status(http.StatusAccepted)
	})

	serve(r, http.MethodPost, "/api/v1/sweeps")

	entries := logs.FilterMessage("sweep requested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "POST", entries[0].ContextMap()["method"])
}

func TestSetGinLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, zap.New(core))
	r.GET("/me", func(c *gin.Context) {
		SetGinLogger(c, GetGinLogger(c).With(zap.String("actor", "auditor")))
		GetGinLogger(c).Info("handled")
		c.Status(http.StatusOK)
	})

	serve(r, http.MethodGet, "/me")

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "auditor", entries[0].ContextMap()["actor"])
}

func TestGetGinLogger_WithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := newTestRouter(t, zap.New(core), func(c *gin.Context) {
		c.Set("request_id", "req-panic")
	})
	r.GET("/panic", func(c *gin.Context) { panic("ledger exploded") })

	w := serve(r, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
	assert.Contains(t, w.Body.String(), "req-panic")
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}
