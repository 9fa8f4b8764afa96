package middleware

import (
	"net/http"
	"strings"

	"base44/pkg/jwtutil"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys populated by the auth middleware
const (
	ContextUserID   = "user_id"
	ContextEmail    = "email"
	ContextTenantID = "tenant_id"
	ContextRole     = "user_role"
)

// Auth validates the JWT bearer token and stores the caller's identity in the
// echo context. The token manager is injected; there is no package state.
func Auth(jwt *jwtutil.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Error("Missing Authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				log.Error("Invalid Authorization header format")
				prometheus.RecordAuthError("invalid_auth_format")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := jwt.Validate(parts[1])
			if err != nil {
				log.Error("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextEmail, claims.Email)
			c.Set(ContextTenantID, claims.TenantID)
			c.Set(ContextRole, claims.Role)

			return next(c)
		}
	}
}

// UserID returns the authenticated user's id from the context
func UserID(c echo.Context) uint {
	id, _ := c.Get(ContextUserID).(uint)
	return id
}

// TenantID returns the authenticated user's tenant id from the context
func TenantID(c echo.Context) uint {
	id, _ := c.Get(ContextTenantID).(uint)
	return id
}
