package handler

import (
	"net/http"
	"strconv"
	"time"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AlertHandler serves alert listing and the acknowledge/resolve transitions.
// Alerts are append-only; these are the only mutations.
type AlertHandler struct {
	db *gorm.DB
}

func NewAlertHandler(db *gorm.DB) *AlertHandler {
	return &AlertHandler{db: db}
}

// alertView adds the derived status to the serialized alert
type alertView struct {
	model.Alert
	Status string `json:"status"`
}

func viewOf(a model.Alert) alertView {
	return alertView{Alert: a, Status: a.Status()}
}

// List returns the caller's alerts, optionally filtered by derived status,
// newest first
func (h *AlertHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	var alerts []model.Alert
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).
		Order("triggered_at desc").Find(&alerts)
	if result.Error != nil {
		log.Error("Failed to list alerts", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve alerts"})
	}

	statusFilter := c.QueryParam("status")
	views := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		if statusFilter != "" && a.Status() != statusFilter {
			continue
		}
		views = append(views, viewOf(a))
	}

	return c.JSON(http.StatusOK, views)
}

// Get returns one alert in the caller's tenant
func (h *AlertHandler) Get(c echo.Context) error {
	alert, err := h.findAlert(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(*alert))
}

// Acknowledge sets or clears the acknowledged flag. Acknowledgement is
// reversible as long as the alert is unresolved.
func (h *AlertHandler) Acknowledge(c echo.Context) error {
	log := logger.FromContext(c)

	alert, err := h.findAlert(c)
	if err != nil {
		return err
	}

	var req struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if alert.Status() == model.AlertResolved {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "alert is already resolved"})
	}

	transition := "acknowledge"
	if req.Acknowledged {
		alert.Acknowledge(middleware.UserID(c))
	} else {
		alert.Unacknowledge()
		transition = "unacknowledge"
	}

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Save(alert); result.Error != nil {
		log.Error("Failed to update alert", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "alert update failed"})
	}
	prometheus.RecordAlertTransition(transition)

	log.Info("Alert acknowledgement changed",
		zap.Uint("alert_id", alert.ID),
		zap.Bool("acknowledged", alert.Acknowledged))

	return c.JSON(http.StatusOK, viewOf(*alert))
}

// Resolve closes the alert. Valid from active or acknowledged; resolving twice
// is rejected.
func (h *AlertHandler) Resolve(c echo.Context) error {
	log := logger.FromContext(c)

	alert, err := h.findAlert(c)
	if err != nil {
		return err
	}

	if alert.Status() == model.AlertResolved {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "alert is already resolved"})
	}

	alert.Resolve()

	defer prometheus.TrackDBOperation("update")(time.Now())
	if result := h.db.Save(alert); result.Error != nil {
		log.Error("Failed to resolve alert", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "alert update failed"})
	}
	prometheus.RecordAlertTransition("resolve")

	log.Info("Alert resolved", zap.Uint("alert_id", alert.ID))

	return c.JSON(http.StatusOK, viewOf(*alert))
}

func (h *AlertHandler) findAlert(c echo.Context) (*model.Alert, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid alert ID"})
	}

	var alert model.Alert
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).First(&alert, uint(id))
	if result.Error != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "alert not found"})
	}
	return &alert, nil
}
