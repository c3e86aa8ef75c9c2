package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/palletledger/backend/internal/infrastructure/auth"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Actor context keys
const (
	JWTClaimsKey  = "jwt_claims"
	ActorKey      = "actor"
	ActorHeader   = "X-User-ID"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ActorConfig configures the actor extraction middleware
type ActorConfig struct {
	// JWTService validates bearer tokens; nil disables token auth
	JWTService *auth.JWTService
	// AllowHeaderFallback accepts X-User-ID when no bearer token is sent (non-production only)
	AllowHeaderFallback bool
	// SkipPaths are paths that don't require an actor
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require an actor
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// DefaultActorConfig returns the configuration used by the router
func DefaultActorConfig(jwtService *auth.JWTService) ActorConfig {
	return ActorConfig{
		JWTService: jwtService,
		SkipPaths:  []string{"/health", "/metrics"},
	}
}

// Actor resolves who is calling and stores it under ActorKey. Every mutating ledger
// operation records this value, so requests without an actor are rejected.
func Actor(cfg ActorConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if slices.Contains(cfg.SkipPaths, path) {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader != "" {
			if cfg.JWTService == nil || !strings.HasPrefix(authHeader, BearerPrefix) {
				abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Authorization header must be a bearer token")
				return
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
			claims, err := cfg.JWTService.ValidateToken(tokenString)
			if err != nil {
				log.Debug("Rejected bearer token", zap.String("path", path), zap.Error(err))
				handleAuthError(c, err)
				return
			}
			c.Set(JWTClaimsKey, claims)
			setActor(c, claims.ActorID())
			c.Next()
			return
		}

		if cfg.AllowHeaderFallback {
			if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
				setActor(c, actor)
				c.Next()
				return
			}
		}
		abortUnauthorized(c, dto.ErrCodeUnauthorized, "Authentication required")
	}
}

func setActor(c *gin.Context, actor string) {
	c.Set(ActorKey, actor)
	ctx, l := logger.WithActor(c.Request.Context(), logger.GetGinLogger(c), actor)
	logger.SetGinLogger(c, l)
	c.Request = c.Request.WithContext(ctx)
}

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		abortUnauthorized(c, dto.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrTokenNotYetValid):
		abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Token is not yet valid")
	case errors.Is(err, auth.ErrMissingActor):
		abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Token does not identify an actor")
	default:
		abortUnauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token")
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}

// GetActor returns the actor resolved by Actor
func GetActor(c *gin.Context) string {
	return c.GetString(ActorKey)
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}
