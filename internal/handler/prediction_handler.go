package handler

import (
	"encoding/json"
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

// PredictionHandler runs forecasts over a KPI's value series and serves the
// stored runs. Each run snapshots its input so results stay explainable after
// the series grows.
type PredictionHandler struct {
	db         *gorm.DB
	forecaster service.Forecaster
}

func NewPredictionHandler(db *gorm.DB, forecaster service.Forecaster) *PredictionHandler {
	return &PredictionHandler{db: db, forecaster: forecaster}
}

const defaultHorizonDays = 30

// Run forecasts the KPI forward and stores the run
func (h *PredictionHandler) Run(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		KPIDefinitionID uint `json:"kpi_id"`
		HorizonDays     int  `json:"horizon_days,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse prediction request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.KPIDefinitionID == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "kpi_id is required"})
	}

	horizon := req.HorizonDays
	if horizon <= 0 {
		horizon = defaultHorizonDays
	}

	var def model.KPIDefinition
	if result := h.db.Where("tenant_id = ?", tenantID).First(&def, req.KPIDefinitionID); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "kpi not found"})
	}

	var series []model.KPIValue
	result := h.db.Where("tenant_id = ? AND kpi_definition_id = ?", tenantID, def.ID).
		Order("timestamp asc").Find(&series)
	if result.Error != nil {
		log.Error("Failed to load KPI series", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "prediction failed"})
	}

	points, modelName := h.forecaster.Forecast(series, horizon)
	prometheus.RecordForecast(modelName)

	snapshot, err := json.Marshal(echo.Map{
		"kpi_id":        def.ID,
		"series_points": len(series),
		"horizon_days":  horizon,
	})
	if err != nil {
		log.Error("Failed to encode input snapshot", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "prediction failed"})
	}
	output, err := json.Marshal(points)
	if err != nil {
		log.Error("Failed to encode forecast output", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "prediction failed"})
	}

	prediction := model.Prediction{
		TenantID:        tenantID,
		KPIDefinitionID: def.ID,
		ModelName:       modelName,
		InputSnapshot:   snapshot,
		Output:          output,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&prediction); result.Error != nil {
		log.Error("Failed to store prediction", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "prediction failed"})
	}

	log.Info("Forecast run",
		zap.Uint("prediction_id", prediction.ID),
		zap.Uint("kpi_id", def.ID),
		zap.String("model", modelName),
		zap.Int("horizon_days", horizon))

	return c.JSON(http.StatusCreated, echo.Map{
		"prediction": prediction,
		"forecast":   points,
	})
}

// List returns the caller's prediction runs, newest first
func (h *PredictionHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	var predictions []model.Prediction
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).
		Order("created_at desc").Find(&predictions)
	if result.Error != nil {
		log.Error("Failed to list predictions", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve predictions"})
	}

	return c.JSON(http.StatusOK, predictions)
}

// Get returns one stored prediction run
func (h *PredictionHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid prediction ID"})
	}

	var prediction model.Prediction
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).First(&prediction, uint(id))
	if result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "prediction not found"})
	}

	return c.JSON(http.StatusOK, prediction)
}
