package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"base44/internal/model"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskAnswersFromTenantData(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	kpiID := createKPI(t, app, token, tenantID, "Campaign ROI", "marketing_agency")
	rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
		token, tenantHeaderOf(tenantID), echo.Map{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.request(t, http.MethodPost, "/api/v1/ask", token, tenantHeaderOf(tenantID), echo.Map{
		"question": "how are my KPIs?",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Answer          string   `json:"answer"`
		Sources         []string `json:"sources"`
		ConfidenceScore float64  `json:"confidence_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "Campaign ROI")
	assert.Contains(t, resp.Sources, "kpi_values")
	assert.Greater(t, resp.ConfidenceScore, 0.0)
}

func TestAskDoesNotSeeOtherTenants(t *testing.T) {
	app := newTestApp(t)
	tenantA, _ := app.registerTenant(t, "Acme", "owner@acme.test")
	tenantB, tokenB := app.registerTenant(t, "Globex", "owner@globex.test")

	seedAlert(t, app, tenantA, model.SeverityHigh)

	rec := app.request(t, http.MethodPost, "/api/v1/ask", tokenB, tenantHeaderOf(tenantB), echo.Map{
		"question": "any alerts?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Answer, "no unresolved alerts")
}

func TestAskRequiresQuestion(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	rec := app.request(t, http.MethodPost, "/api/v1/ask", token, tenantHeaderOf(tenantID), echo.Map{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
