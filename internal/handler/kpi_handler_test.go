package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"base44/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createKPI(t *testing.T, app *testApp, token string, tenantID uint, name, vertical string) uint {
	t.Helper()

	rec := app.request(t, http.MethodPost, "/api/v1/kpis", token, tenantHeaderOf(tenantID), echo.Map{
		"name":     name,
		"vertical": vertical,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var def model.KPIDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &def))
	return def.ID
}

func seedNormalizedRecords(t *testing.T, app *testApp, tenantID uint, fields []map[string]interface{}) {
	t.Helper()
	for i, f := range fields {
		b, err := json.Marshal(f)
		require.NoError(t, err)
		record := model.NormalizedRecord{
			TenantID:    tenantID,
			RawIngestID: 1,
			EntityType:  "lead",
			Fields:      b,
			RowIndex:    i,
		}
		require.NoError(t, app.db.Create(&record).Error)
	}
}

func TestCreateKPIValidation(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	rec := app.request(t, http.MethodPost, "/api/v1/kpis", token, tenantHeaderOf(tenantID), echo.Map{
		"vertical": "marketing_agency",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = app.request(t, http.MethodPost, "/api/v1/kpis", token, tenantHeaderOf(tenantID), echo.Map{
		"name":     "Custom",
		"vertical": "real_estate",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = app.request(t, http.MethodPost, "/api/v1/kpis", token, tenantHeaderOf(tenantID), echo.Map{
		"name":     "Custom",
		"vertical": "marketing_agency",
		"formula":  echo.Map{"kind": "javascript"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEvaluateComputesFormulaAndTriggersAlert(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	kpiID := createKPI(t, app, token, tenantID, "Lead Conversion Rate", "marketing_agency")

	// 1 conversion out of 20 leads: 5%, under the 10% alert threshold
	var fields []map[string]interface{}
	fields = append(fields, map[string]interface{}{"status": "converted"})
	for i := 0; i < 19; i++ {
		fields = append(fields, map[string]interface{}{"status": "new"})
	}
	seedNormalizedRecords(t, app, tenantID, fields)

	rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
		token, tenantHeaderOf(tenantID), echo.Map{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Value struct {
			Value      float64 `json:"value"`
			Provenance struct {
				CalculationMethod string `json:"calculation_method"`
				SourceRecords     int    `json:"source_records"`
			} `json:"provenance"`
		} `json:"value"`
		Alerts []struct {
			Severity string `json:"severity"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 5.0, resp.Value.Value)
	assert.Equal(t, model.CalcFormulaBased, resp.Value.Provenance.CalculationMethod)
	assert.Equal(t, 20, resp.Value.Provenance.SourceRecords)
	require.Len(t, resp.Alerts, 1)
	assert.Equal(t, model.SeverityHigh, resp.Alerts[0].Severity)

	var stored []model.Alert
	require.NoError(t, app.db.Where("tenant_id = ?", tenantID).Find(&stored).Error)
	assert.Len(t, stored, 1)
}

func TestEvaluateWithoutRecordsFallsBackToBaseline(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	kpiID := createKPI(t, app, token, tenantID, "Campaign ROI", "marketing_agency")

	rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
		token, tenantHeaderOf(tenantID), echo.Map{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Value struct {
			Value      float64 `json:"value"`
			Provenance struct {
				CalculationMethod string `json:"calculation_method"`
			} `json:"provenance"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 285.0, resp.Value.Value)
	assert.Equal(t, model.CalcMockGenerated, resp.Value.Provenance.CalculationMethod)
}

func TestEvaluateRejectsInvertedWindow(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	kpiID := createKPI(t, app, token, tenantID, "Campaign ROI", "marketing_agency")

	end := time.Now().UTC()
	start := end.AddDate(0, 0, 7)
	rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
		token, tenantHeaderOf(tenantID), echo.Map{"start": start, "end": end})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValuesReturnsSeriesNewestFirst(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	kpiID := createKPI(t, app, token, tenantID, "Campaign ROI", "marketing_agency")

	for i := 0; i < 3; i++ {
		rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
			token, tenantHeaderOf(tenantID), echo.Map{})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := app.request(t, http.MethodGet, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/values",
		token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var values []model.KPIValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	require.Len(t, values, 3)
	for i := 1; i < len(values); i++ {
		assert.False(t, values[i-1].Timestamp.Before(values[i].Timestamp))
	}
}

func TestEvaluateUnknownKPIIs404(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	rec := app.request(t, http.MethodPost, "/api/v1/kpis/42/evaluate", token, tenantHeaderOf(tenantID), echo.Map{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
