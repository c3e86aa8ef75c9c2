package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func() error

func (f pingerFunc) Ping(context.Context) error { return f() }

func TestSystemHandler(t *testing.T) {
	serve := func(h *SystemHandler, path string) *httptest.ResponseRecorder {
		r := gin.New()
		r.GET("/health", h.Health)
		r.GET("/system/info", h.Info)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("healthy", func(t *testing.T) {
		h := NewSystemHandler("pallet-ledger", "1.2.0", pingerFunc(func() error { return nil }))
		w := serve(h, "/health")
		require.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Database)
	})

	t.Run("database down", func(t *testing.T) {
		h := NewSystemHandler("pallet-ledger", "1.2.0", pingerFunc(func() error { return errors.New("connection refused") }))
		w := serve(h, "/health")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "error", resp.Database)
	})

	t.Run("info", func(t *testing.T) {
		h := NewSystemHandler("pallet-ledger", "1.2.0", nil)
		w := serve(h, "/system/info")
		require.Equal(t, http.StatusOK, w.Code)
		var info SystemInfoResponse
		decodeData(t, w, &info)
		assert.Equal(t, "pallet-ledger", info.Name)
		assert.Equal(t, "1.2.0", info.Version)
		assert.NotEmpty(t, info.GoVersion)
	})
}
