package middleware

import (
	"net/http"
	"strconv"

	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantHeader must be present on every tenant-scoped call
const TenantHeader = "X-Tenant-ID"

// RequireTenant enforces the access guard: the X-Tenant-ID header is required
// (422 when absent or malformed) and must match the caller's authenticated
// tenant (403 otherwise). The mismatch response carries no information about
// the target tenant. Runs after Auth.
func RequireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		header := c.Request().Header.Get(TenantHeader)
		if header == "" {
			prometheus.RecordAuthError("missing_tenant_header")
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "X-Tenant-ID header is required"})
		}

		asserted, err := strconv.ParseUint(header, 10, 32)
		if err != nil {
			prometheus.RecordAuthError("invalid_tenant_header")
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "X-Tenant-ID header must be a numeric tenant id"})
		}

		if uint(asserted) != TenantID(c) {
			log.Warn("Cross-tenant access rejected",
				zap.Uint("caller_tenant_id", TenantID(c)),
				zap.Uint64("asserted_tenant_id", asserted))
			prometheus.RecordAuthError("tenant_mismatch")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to this tenant"})
		}

		return next(c)
	}
}
