package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/internal/service"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConnectorHandler serves the connector registry and the ingestion pipeline:
// CSV uploads, pull-source syncs, mapping suggestions and normalization.
type ConnectorHandler struct {
	db        *gorm.DB
	ingestor  *service.CSVIngestor
	suggester service.Suggester
	source    service.SourceClient
}

func NewConnectorHandler(db *gorm.DB, ingestor *service.CSVIngestor, suggester service.Suggester, source service.SourceClient) *ConnectorHandler {
	return &ConnectorHandler{db: db, ingestor: ingestor, suggester: suggester, source: source}
}

// Create registers a connector under the caller's tenant. The config must
// match the connector type.
func (h *ConnectorHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		Type   string                `json:"type"`
		Config model.ConnectorConfig `json:"config"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse connector request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := req.Config.Validate(req.Type); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	connector := model.Connector{
		TenantID: tenantID,
		Type:     req.Type,
		Config:   req.Config,
		Active:   true,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&connector); result.Error != nil {
		log.Error("Failed to create connector", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "connector creation failed"})
	}

	log.Info("Connector created",
		zap.Uint("connector_id", connector.ID),
		zap.String("type", connector.Type),
		zap.Uint("tenant_id", tenantID))

	return c.JSON(http.StatusCreated, connector)
}

// List returns the caller's connectors
func (h *ConnectorHandler) List(c echo.Context) error {
	log := logger.FromContext(c)

	var connectors []model.Connector
	if result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).Find(&connectors); result.Error != nil {
		log.Error("Failed to list connectors", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve connectors"})
	}

	return c.JSON(http.StatusOK, connectors)
}

// Get returns one connector in the caller's tenant
func (h *ConnectorHandler) Get(c echo.Context) error {
	connector, err := h.findConnector(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, connector)
}

// Upload ingests a CSV file through a csv connector: the file is parsed under
// the connector's options and captured verbatim as a raw ingest, alongside
// mapping suggestions for the detected vertical.
func (h *ConnectorHandler) Upload(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	connector, err := h.findConnector(c)
	if err != nil {
		return err
	}
	if connector.Type != model.ConnectorCSV {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "connector does not accept file uploads"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Error("Failed to open uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("Failed to read uploaded file", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}

	var opts model.CSVOptions
	if connector.Config.CSV != nil {
		opts = *connector.Config.CSV
	} else {
		opts.HasHeader = true
	}

	rows, columns, err := h.ingestor.Parse(content, opts)
	if err != nil {
		log.Warn("CSV parse rejected", zap.String("file", fileHeader.Filename), zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	}

	records, err := json.Marshal(rows)
	if err != nil {
		log.Error("Failed to encode ingest records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}

	ingest := model.RawIngest{
		TenantID:    tenantID,
		ConnectorID: connector.ID,
		Records:     records,
		Meta: model.IngestMeta{
			BatchID:     uuid.NewString(),
			FileName:    fileHeader.Filename,
			FileSize:    fileHeader.Size,
			Source:      model.ConnectorCSV,
			RecordCount: len(rows),
			Columns:     columns,
			ProcessedAt: time.Now().UTC(),
		},
		Status: model.IngestPending,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&ingest); result.Error != nil {
		log.Error("Failed to store raw ingest", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "upload failed"})
	}
	prometheus.RecordIngest(connector.Type, len(rows))

	vertical := service.DetectVertical(rows[0])
	suggestions := h.suggester.Suggest(connector.Type, vertical, rows[0])

	log.Info("CSV file ingested",
		zap.Uint("ingest_id", ingest.ID),
		zap.Uint("connector_id", connector.ID),
		zap.String("file", fileHeader.Filename),
		zap.Int("records", len(rows)))

	return c.JSON(http.StatusCreated, echo.Map{
		"ingest":              ingest,
		"detected_vertical":   vertical,
		"mapping_suggestions": suggestions,
	})
}

// Sync drains a pull-based connector's source and captures the combined pages
// as one raw ingest
func (h *ConnectorHandler) Sync(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	connector, err := h.findConnector(c)
	if err != nil {
		return err
	}
	if connector.Config.Pull == nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "connector is not a pull source"})
	}

	pulled, err := service.DrainSource(c.Request().Context(), h.source, *connector.Config.Pull)
	if err != nil {
		log.Error("Source sync failed",
			zap.Uint("connector_id", connector.ID),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "source sync failed"})
	}

	records, err := json.Marshal(pulled)
	if err != nil {
		log.Error("Failed to encode pulled records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}

	now := time.Now().UTC()
	ingest := model.RawIngest{
		TenantID:    tenantID,
		ConnectorID: connector.ID,
		Records:     records,
		Meta: model.IngestMeta{
			BatchID:     uuid.NewString(),
			Source:      connector.Type,
			RecordCount: len(pulled),
			ProcessedAt: now,
		},
		Status: model.IngestPending,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ingest).Error; err != nil {
			return err
		}
		return tx.Model(connector).Update("last_sync_at", now).Error
	})
	if err != nil {
		log.Error("Failed to store sync ingest", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}
	prometheus.RecordIngest(connector.Type, len(pulled))

	log.Info("Connector synced",
		zap.Uint("ingest_id", ingest.ID),
		zap.Uint("connector_id", connector.ID),
		zap.Int("records", len(pulled)))

	return c.JSON(http.StatusCreated, echo.Map{"ingest": ingest})
}

// Mapping returns ranked field-mapping suggestions for the connector and the
// requested vertical
func (h *ConnectorHandler) Mapping(c echo.Context) error {
	connector, err := h.findConnector(c)
	if err != nil {
		return err
	}

	vertical := c.QueryParam("vertical")
	if vertical == "" {
		vertical = service.VerticalMarketing
	}

	suggestions := h.suggester.Suggest(connector.Type, vertical, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"connector_id":         connector.ID,
		"vertical":             vertical,
		"suggestions":          suggestions,
		"confidence_threshold": service.DefaultConfidenceThreshold,
	})
}

// Normalize applies a confirmed field mapping to a raw ingest. Re-running with
// the same mapping replaces the previous normalized rows with identical ones.
func (h *ConnectorHandler) Normalize(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ingest ID"})
	}

	var req struct {
		Mapping service.FieldMapping `json:"mapping"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse normalize request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if len(req.Mapping) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "mapping is required"})
	}

	var ingest model.RawIngest
	if result := h.db.Where("tenant_id = ?", tenantID).First(&ingest, uint(id)); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "ingest not found"})
	}

	rows, err := decodeIngestRows(ingest.Records)
	if err != nil {
		log.Error("Failed to decode ingest records", zap.Uint("ingest_id", ingest.ID), zap.Error(err))
		h.db.Model(&ingest).Update("status", model.IngestFailed)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "normalization failed"})
	}

	normalized := service.NormalizeRows(rows, req.Mapping)

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("raw_ingest_id = ?", ingest.ID).Delete(&model.NormalizedRecord{}).Error; err != nil {
			return err
		}
		for _, row := range normalized {
			fields, err := json.Marshal(row.Fields)
			if err != nil {
				return err
			}
			record := model.NormalizedRecord{
				TenantID:    tenantID,
				RawIngestID: ingest.ID,
				EntityType:  row.EntityType,
				Fields:      fields,
				RowIndex:    row.RowIndex,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return tx.Model(&ingest).Update("status", model.IngestProcessed).Error
	})
	if err != nil {
		log.Error("Failed to store normalized records", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "normalization failed"})
	}

	log.Info("Ingest normalized",
		zap.Uint("ingest_id", ingest.ID),
		zap.Int("records", len(normalized)))

	return c.JSON(http.StatusOK, echo.Map{
		"ingest_id":          ingest.ID,
		"normalized_records": len(normalized),
		"status":             model.IngestProcessed,
	})
}

// findConnector loads the path connector scoped to the caller's tenant.
// Connectors in other tenants are indistinguishable from missing ones.
func (h *ConnectorHandler) findConnector(c echo.Context) (*model.Connector, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid connector ID"})
	}

	var connector model.Connector
	result := h.db.Where("tenant_id = ?", middleware.TenantID(c)).First(&connector, uint(id))
	if result.Error != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "connector not found"})
	}
	return &connector, nil
}

// decodeIngestRows converts stored raw records back to string rows. Pull
// sources store free-form JSON values; those are stringified for mapping.
func decodeIngestRows(records []byte) ([]map[string]string, error) {
	var raw []map[string]interface{}
	if err := json.Unmarshal(records, &raw); err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(raw))
	for _, r := range raw {
		row := make(map[string]string, len(r))
		for k, v := range r {
			switch value := v.(type) {
			case string:
				row[k] = value
			case float64:
				row[k] = strconv.FormatFloat(value, 'f', -1, 64)
			case bool:
				row[k] = strconv.FormatBool(value)
			case nil:
				row[k] = ""
			default:
				b, err := json.Marshal(value)
				if err != nil {
					return nil, fmt.Errorf("stringify field %q: %w", k, err)
				}
				row[k] = string(b)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
