package handler

import (
	"net/http"
	"strconv"
	"time"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/internal/service"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// KPIHandler serves KPI definitions, evaluations and value history. An
// evaluation appends one value, checks it against the vertical's alert rules
// and runs anomaly detection over the updated series.
type KPIHandler struct {
	db        *gorm.DB
	engine    *service.KPIEngine
	evaluator *service.AlertEvaluator
}

func NewKPIHandler(db *gorm.DB, engine *service.KPIEngine, evaluator *service.AlertEvaluator) *KPIHandler {
	return &KPIHandler{db: db, engine: engine, evaluator: evaluator}
}

var allowedVerticals = map[string]bool{
	service.VerticalMarketing: true,
	service.VerticalClinic:    true,
	service.VerticalPolice:    true,
}

var allowedFormulaKinds = map[string]bool{
	model.FormulaRatio:   true,
	model.FormulaSum:     true,
	model.FormulaAverage: true,
	model.FormulaCount:   true,
	model.FormulaRate:    true,
}

// Create registers a KPI definition under the caller's tenant
func (h *KPIHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		Name     string            `json:"name"`
		Vertical string            `json:"vertical"`
		Formula  model.FormulaSpec `json:"formula"`
		Window   string            `json:"window,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse KPI request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "name is required"})
	}
	if !allowedVerticals[req.Vertical] {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unsupported vertical"})
	}
	if req.Formula.Kind != "" && !allowedFormulaKinds[req.Formula.Kind] {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "unsupported formula kind"})
	}

	window := req.Window
	if window == "" {
		window = "daily"
	}

	def := model.KPIDefinition{
		TenantID: tenantID,
		Name:     req.Name,
		Vertical: req.Vertical,
		Formula:  req.Formula,
		Window:   window,
		Active:   true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&def); result.Error != nil {
		log.Error("Failed to create KPI definition", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "kpi creation failed"})
	}

	log.Info("KPI definition created",
		zap.Uint("kpi_id", def.ID),
		zap.String("name", def.Name),
		zap.String("vertical", def.Vertical))

	return c.JSON(http.StatusCreated, def)
}

// List returns the caller's KPI definitions
func (h *KPIHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	var defs []model.KPIDefinition
	if result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).Find(&defs); result.Error != nil {
		log.Error("Failed to list KPI definitions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve kpis"})
	}

	return c.JSON(http.StatusOK, defs)
}

// Evaluate computes the KPI over the requested window, appends the value to
// the series, evaluates alert rules against it and runs anomaly detection over
// the series so far
func (h *KPIHandler) Evaluate(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	def, err := h.findDefinition(c)
	if err != nil {
		return err
	}

	var req struct {
		Start *time.Time `json:"start,omitempty"`
		End   *time.Time `json:"end,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	end := time.Now().UTC()
	if req.End != nil {
		end = req.End.UTC()
	}
	start := end.AddDate(0, 0, -30)
	if req.Start != nil {
		start = req.Start.UTC()
	}
	if !start.Before(end) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "start must be before end"})
	}

	var records []model.NormalizedRecord
	if result := h.db.Where("tenant_id = ?", tenantID).Find(&records); result.Error != nil {
		log.Error("Failed to load normalized records", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "evaluation failed"})
	}

	timer := time.Now()
	kv := h.engine.Calculate(def, records, start, end)
	prometheus.KPIEvaluationDuration.Observe(time.Since(timer).Seconds())
	prometheus.RecordKPIEvaluation(kv.Provenance.CalculationMethod)

	alerts := h.evaluator.EvaluateValue(def, &kv)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&kv).Error; err != nil {
			return err
		}
		for i := range alerts {
			if err := tx.Create(&alerts[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to store KPI value", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "evaluation failed"})
	}
	for _, a := range alerts {
		prometheus.RecordAlertTriggered(a.Severity)
	}

	// anomaly pass over the series including the new value
	var series []model.KPIValue
	if result := h.db.Where("tenant_id = ? AND kpi_definition_id = ?", tenantID, def.ID).
		Order("timestamp asc").Find(&series); result.Error == nil {
		anomalies := h.evaluator.DetectAnomalies(def, series)
		for i := range anomalies {
			if err := h.db.Create(&anomalies[i]).Error; err != nil {
				log.Error("Failed to store anomaly alert", zap.Error(err))
				continue
			}
			prometheus.RecordAlertTriggered(anomalies[i].Severity)
			alerts = append(alerts, anomalies[i])
		}
	}

	log.Info("KPI evaluated",
		zap.Uint("kpi_id", def.ID),
		zap.Float64("value", kv.Value),
		zap.String("method", kv.Provenance.CalculationMethod),
		zap.Int("alerts", len(alerts)))

	return c.JSON(http.StatusCreated, echo.Map{
		"value":  kv,
		"alerts": alerts,
	})
}

// Values returns the KPI's value history, newest first
func (h *KPIHandler) Values(c echo.Context) error {
	log := logger.FromContext(c)

	def, err := h.findDefinition(c)
	if err != nil {
		return err
	}

	var values []model.KPIValue
	result := h.db.Where("tenant_id = ? AND kpi_definition_id = ?", middleware.TenantID(c), def.ID).
		Order("timestamp desc").Find(&values)
	if result.Error != nil {
		log.Error("Failed to load KPI values", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve values"})
	}

	return c.JSON(http.StatusOK, values)
}

func (h *KPIHandler) findDefinition(c echo.Context) (*model.KPIDefinition, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid kpi ID"})
	}

	var def model.KPIDefinition
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).First(&def, uint(id))
	if result.Error != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "kpi not found"})
	}
	return &def, nil
}
