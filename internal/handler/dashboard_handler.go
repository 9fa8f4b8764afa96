package handler

import (
	"net/http"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardHandler assembles the tenant overview: the latest value of each
// KPI plus the open alert counts
type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

// kpiTile is one dashboard entry: a definition with its most recent value
type kpiTile struct {
	KPIID    uint            `json:"kpi_id"`
	Name     string          `json:"name"`
	Vertical string          `json:"vertical"`
	Window   string          `json:"window"`
	Latest   *model.KPIValue `json:"latest,omitempty"`
}

// Overview returns the tenant dashboard
func (h *DashboardHandler) Overview(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var defs []model.KPIDefinition
	if result := h.db.Where("tenant_id = ? AND active = ?", tenantID, true).Find(&defs); result.Error != nil {
		log.Error("Failed to load KPI definitions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build dashboard"})
	}

	tiles := make([]kpiTile, 0, len(defs))
	for _, def := range defs {
		tile := kpiTile{
			KPIID:    def.ID,
			Name:     def.Name,
			Vertical: def.Vertical,
			Window:   def.Window,
		}

		var latest model.KPIValue
		result := h.db.Where("tenant_id = ? AND kpi_definition_id = ?", tenantID, def.ID).
			Order("timestamp desc").First(&latest)
		if result.Error == nil {
			tile.Latest = &latest
		}

		tiles = append(tiles, tile)
	}

	var alerts []model.Alert
	if result := h.db.Where("tenant_id = ? AND resolved_at IS NULL", tenantID).
		Order("triggered_at desc").Find(&alerts); result.Error != nil {
		log.Error("Failed to load alerts", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to build dashboard"})
	}

	var active, acknowledged int
	bySeverity := map[string]int{}
	for _, a := range alerts {
		if a.Status() == model.AlertAcknowledged {
			acknowledged++
		} else {
			active++
		}
		bySeverity[a.Severity]++
	}

	return c.JSON(http.StatusOK, echo.Map{
		"kpis": tiles,
		"alerts": echo.Map{
			"active":       active,
			"acknowledged": acknowledged,
			"by_severity":  bySeverity,
			"recent":       recentAlerts(alerts, 5),
		},
	})
}

func recentAlerts(alerts []model.Alert, n int) []alertView {
	if len(alerts) < n {
		n = len(alerts)
	}
	views := make([]alertView, 0, n)
	for _, a := range alerts[:n] {
		views = append(views, viewOf(a))
	}
	return views
}
