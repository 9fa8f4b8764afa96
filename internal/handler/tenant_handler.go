package handler

import (
	"net/http"
	"strconv"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantHandler serves tenant lookups. A caller can only ever see its own
// tenant; requests for any other id are rejected without revealing whether
// that tenant exists.
type TenantHandler struct {
	db *gorm.DB
}

func NewTenantHandler(db *gorm.DB) *TenantHandler {
	return &TenantHandler{db: db}
}

// Get returns the tenant identified in the path, provided it is the caller's
func (h *TenantHandler) Get(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	if uint(id) != middleware.TenantID(c) {
		log.Warn("Cross-tenant lookup rejected",
			zap.Uint("caller_tenant_id", middleware.TenantID(c)),
			zap.Uint64("requested_tenant_id", id))
		prometheus.RecordAuthError("tenant_mismatch")
		return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied to this tenant"})
	}

	var tenant model.Tenant
	if result := h.db.First(&tenant, uint(id)); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	return c.JSON(http.StatusOK, tenant)
}
