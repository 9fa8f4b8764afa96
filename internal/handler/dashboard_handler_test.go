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

func TestDashboardOverview(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	kpiID := createKPI(t, app, token, tenantID, "Campaign ROI", "marketing_agency")
	rec := app.request(t, http.MethodPost, "/api/v1/kpis/"+tenantHeaderOf(kpiID)+"/evaluate",
		token, tenantHeaderOf(tenantID), echo.Map{})
	require.Equal(t, http.StatusCreated, rec.Code)

	// a second definition with no values yet still shows as a tile
	createKPI(t, app, token, tenantID, "Monthly Revenue", "marketing_agency")

	seedAlert(t, app, tenantID, model.SeverityHigh)
	ackedID := seedAlert(t, app, tenantID, model.SeverityMedium)
	rec = app.request(t, http.MethodPost, "/api/v1/alerts/"+tenantHeaderOf(ackedID)+"/ack",
		token, tenantHeaderOf(tenantID), echo.Map{"acknowledged": true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/v1/dashboard", token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		KPIs []struct {
			Name   string          `json:"name"`
			Latest *model.KPIValue `json:"latest"`
		} `json:"kpis"`
		Alerts struct {
			Active       int               `json:"active"`
			Acknowledged int               `json:"acknowledged"`
			BySeverity   map[string]int    `json:"by_severity"`
			Recent       []json.RawMessage `json:"recent"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.KPIs, 2)
	byName := map[string]bool{}
	for _, tile := range resp.KPIs {
		byName[tile.Name] = tile.Latest != nil
	}
	assert.True(t, byName["Campaign ROI"])
	assert.False(t, byName["Monthly Revenue"])

	assert.Equal(t, 1, resp.Alerts.Active)
	assert.Equal(t, 1, resp.Alerts.Acknowledged)
	assert.Equal(t, 1, resp.Alerts.BySeverity[model.SeverityHigh])
	assert.Len(t, resp.Alerts.Recent, 2)
}

func TestDashboardExcludesResolvedAlerts(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	resolvedID := seedAlert(t, app, tenantID, model.SeverityLow)
	rec := app.request(t, http.MethodPost, "/api/v1/alerts/"+tenantHeaderOf(resolvedID)+"/resolve",
		token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/v1/dashboard", token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts struct {
			Active       int `json:"active"`
			Acknowledged int `json:"acknowledged"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Alerts.Active)
	assert.Zero(t, resp.Alerts.Acknowledged)
}
