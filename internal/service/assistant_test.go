package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordResponderAlertQuestions(t *testing.T) {
	r := NewKeywordResponder()

	empty := r.Answer("any open alerts?", TenantSnapshot{})
	assert.Contains(t, empty.Answer, "no unresolved alerts")
	assert.Empty(t, empty.SuggestedActions)

	snapshot := TenantSnapshot{Alerts: []AlertSnapshot{
		{Name: "Low Conversion Rate Alert", Severity: "high", TriggeredAt: time.Now()},
	}}
	resp := r.Answer("show me the alerts", snapshot)
	assert.Contains(t, resp.Answer, "1 unresolved alert")
	assert.Contains(t, resp.Answer, "Low Conversion Rate Alert")
	require.NotEmpty(t, resp.SuggestedActions)
	assert.Equal(t, "review_alerts", resp.SuggestedActions[0].ActionType)
	assert.Equal(t, []string{"alerts"}, resp.Sources)
}

func TestKeywordResponderKPIQuestions(t *testing.T) {
	r := NewKeywordResponder()

	snapshot := TenantSnapshot{KPIs: []KPISnapshot{
		{Name: "Lead Conversion Rate", Value: 12.5, Timestamp: time.Now()},
	}}
	resp := r.Answer("how are my KPIs doing?", snapshot)
	assert.Contains(t, resp.Answer, "Lead Conversion Rate = 12.50")
	assert.Equal(t, []string{"kpi_values"}, resp.Sources)

	empty := r.Answer("kpi summary", TenantSnapshot{})
	require.NotEmpty(t, empty.SuggestedActions)
	assert.Equal(t, "evaluate_kpi", empty.SuggestedActions[0].ActionType)
}

func TestKeywordResponderOverview(t *testing.T) {
	r := NewKeywordResponder()

	snapshot := TenantSnapshot{
		KPIs:   []KPISnapshot{{Name: "Patient Volume", Value: 48}},
		Alerts: []AlertSnapshot{{Name: "Long Wait Time Alert", Severity: "high"}},
	}
	resp := r.Answer("how is the business?", snapshot)
	assert.Contains(t, resp.Answer, "1 KPI(s)")
	assert.Contains(t, resp.Answer, "1 unresolved alert(s)")
	assert.NotEmpty(t, resp.SuggestedActions)
}
