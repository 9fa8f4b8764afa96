package handler

import (
	"net/http"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/internal/service"
	"base44/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssistantHandler answers natural-language questions over the caller's
// tenant data. The snapshot handed to the responder is tenant-scoped, so the
// answer can never leak another tenant's rows.
type AssistantHandler struct {
	db        *gorm.DB
	responder service.Responder
}

func NewAssistantHandler(db *gorm.DB, responder service.Responder) *AssistantHandler {
	return &AssistantHandler{db: db, responder: responder}
}

// Ask answers one question from the tenant's KPI values and open alerts
func (h *AssistantHandler) Ask(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse assistant request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Question == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "question is required"})
	}

	snapshot, err := h.buildSnapshot(tenantID)
	if err != nil {
		log.Error("Failed to build tenant snapshot", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "assistant unavailable"})
	}

	response := h.responder.Answer(req.Question, snapshot)

	log.Info("Assistant answered",
		zap.Int("kpis", len(snapshot.KPIs)),
		zap.Int("alerts", len(snapshot.Alerts)),
		zap.Float64("confidence", response.ConfidenceScore))

	return c.JSON(http.StatusOK, response)
}

// buildSnapshot collects the latest value of each active KPI and the
// unresolved alerts for one tenant
func (h *AssistantHandler) buildSnapshot(tenantID uint) (service.TenantSnapshot, error) {
	var snapshot service.TenantSnapshot

	var defs []model.KPIDefinition
	if err := h.db.Where("tenant_id = ? AND active = ?", tenantID, true).Find(&defs).Error; err != nil {
		return snapshot, err
	}

	for _, def := range defs {
		var latest model.KPIValue
		result := h.db.Where("tenant_id = ? AND kpi_definition_id = ?", tenantID, def.ID).
			Order("timestamp desc").First(&latest)
		if result.Error != nil {
			continue
		}
		snapshot.KPIs = append(snapshot.KPIs, service.KPISnapshot{
			Name:      def.Name,
			Value:     latest.Value,
			Timestamp: latest.Timestamp,
		})
	}

	var alerts []model.Alert
	if err := h.db.Where("tenant_id = ? AND resolved_at IS NULL", tenantID).
		Order("triggered_at desc").Find(&alerts).Error; err != nil {
		return snapshot, err
	}
	for _, a := range alerts {
		snapshot.Alerts = append(snapshot.Alerts, service.AlertSnapshot{
			Name:        a.Rule.Name,
			Severity:    a.Severity,
			TriggeredAt: a.TriggeredAt,
		})
	}

	return snapshot, nil
}
