package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/infrastructure/auth"
	"github.com/palletledger/backend/internal/infrastructure/config"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret: "test-secret-key-at-least-32-chars",
		Issuer: "pallet-ledger",
	})
}

func newActorRouter(cfg ActorConfig) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Actor(cfg))
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetActor(c))
	})
	return router
}

func TestActor_BearerToken(t *testing.T) {
	jwtService := newTestJWTService()
	token, err := jwtService.IssueToken("analyst@example.com", []string{"reconciler"}, time.Hour)
	require.NoError(t, err)

	router := gin.New()
	router.Use(Actor(DefaultActorConfig(jwtService)))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.True(t, claims.HasRole("reconciler"))
		assert.Equal(t, "analyst@example.com", logger.GetActor(c.Request.Context()))
		c.String(http.StatusOK, GetActor(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "analyst@example.com", w.Body.String())
}

func TestActor_Rejections(t *testing.T) {
	jwtService := newTestJWTService()
	expired, err := jwtService.IssueToken("analyst", nil, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing credentials", "", "UNAUTHORIZED"},
		{"basic auth", "Basic dXNlcjpwYXNz", "INVALID_TOKEN"},
		{"garbage token", BearerPrefix + "not-a-token", "INVALID_TOKEN"},
		{"expired token", BearerPrefix + expired, "TOKEN_EXPIRED"},
	}

	router := newActorRouter(DefaultActorConfig(jwtService))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			req.Header.Set(RequestIDHeader, "req-auth")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
			assert.Contains(t, w.Body.String(), "req-auth")
		})
	}
}

func TestActor_HeaderFallback(t *testing.T) {
	t.Run("accepted when enabled", func(t *testing.T) {
		cfg := DefaultActorConfig(nil)
		cfg.AllowHeaderFallback = true
		router := newActorRouter(cfg)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(ActorHeader, " ops-user ")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ops-user", w.Body.String())
	})

	t.Run("ignored when disabled", func(t *testing.T) {
		router := newActorRouter(DefaultActorConfig(nil))

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(ActorHeader, "ops-user")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestActor_SkipPaths(t *testing.T) {
	cfg := DefaultActorConfig(nil)
	cfg.SkipPathPrefixes = []string{"/te"}
	router := newActorRouter(cfg)

	for _, path := range []string{"/health", "/test"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
