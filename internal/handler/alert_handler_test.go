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

func seedAlert(t *testing.T, app *testApp, tenantID uint, severity string) uint {
	t.Helper()

	alert := model.Alert{
		TenantID: tenantID,
		Rule: model.RuleSpec{
			Name:     "Low Conversion Rate Alert",
			KPIName:  "lead_conversion_rate",
			Kind:     "threshold",
			Severity: severity,
		},
		Severity:    severity,
		TriggeredAt: time.Now().UTC(),
		Details:     model.AlertDetails{TriggeredValue: 5, Threshold: "value < 10"},
	}
	require.NoError(t, app.db.Create(&alert).Error)
	return alert.ID
}

func TestAlertLifecycle(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	alertID := seedAlert(t, app, tenantID, model.SeverityHigh)

	path := "/api/v1/alerts/" + tenantHeaderOf(alertID)

	// starts active
	rec := app.request(t, http.MethodGet, path, token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.AlertActive, view.Status)

	// acknowledge
	rec = app.request(t, http.MethodPost, path+"/ack", token, tenantHeaderOf(tenantID), echo.Map{"acknowledged": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.AlertAcknowledged, view.Status)

	// acknowledgement is reversible
	rec = app.request(t, http.MethodPost, path+"/ack", token, tenantHeaderOf(tenantID), echo.Map{"acknowledged": false})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.AlertActive, view.Status)

	// resolve
	rec = app.request(t, http.MethodPost, path+"/resolve", token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.AlertResolved, view.Status)

	// resolved is terminal
	rec = app.request(t, http.MethodPost, path+"/resolve", token, tenantHeaderOf(tenantID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = app.request(t, http.MethodPost, path+"/ack", token, tenantHeaderOf(tenantID), echo.Map{"acknowledged": true})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAcknowledgeRecordsUser(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")
	alertID := seedAlert(t, app, tenantID, model.SeverityMedium)

	rec := app.request(t, http.MethodPost, "/api/v1/alerts/"+tenantHeaderOf(alertID)+"/ack",
		token, tenantHeaderOf(tenantID), echo.Map{"acknowledged": true})
	require.Equal(t, http.StatusOK, rec.Code)

	var alert model.Alert
	require.NoError(t, app.db.First(&alert, alertID).Error)
	require.NotNil(t, alert.AcknowledgedBy)

	var user model.User
	require.NoError(t, app.db.Where("email = ?", "owner@acme.test").First(&user).Error)
	assert.Equal(t, user.ID, *alert.AcknowledgedBy)
}

func TestListAlertsFiltersByStatus(t *testing.T) {
	app := newTestApp(t)
	tenantID, token := app.registerTenant(t, "Acme", "owner@acme.test")

	seedAlert(t, app, tenantID, model.SeverityHigh)
	resolvedID := seedAlert(t, app, tenantID, model.SeverityLow)

	rec := app.request(t, http.MethodPost, "/api/v1/alerts/"+tenantHeaderOf(resolvedID)+"/resolve",
		token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.request(t, http.MethodGet, "/api/v1/alerts?status=active", token, tenantHeaderOf(tenantID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Len(t, active, 1)

	rec = app.request(t, http.MethodGet, "/api/v1/alerts?status=resolved", token, tenantHeaderOf(tenantID), nil)
	var resolved []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Len(t, resolved, 1)

	rec = app.request(t, http.MethodGet, "/api/v1/alerts", token, tenantHeaderOf(tenantID), nil)
	var all []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)
}

func TestAlertsScopedToTenant(t *testing.T) {
	app := newTestApp(t)
	tenantA, _ := app.registerTenant(t, "Acme", "owner@acme.test")
	tenantB, tokenB := app.registerTenant(t, "Globex", "owner@globex.test")

	alertID := seedAlert(t, app, tenantA, model.SeverityHigh)

	rec := app.request(t, http.MethodPost, "/api/v1/alerts/"+tenantHeaderOf(alertID)+"/ack",
		tokenB, tenantHeaderOf(tenantB), echo.Map{"acknowledged": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
