package service

import (
	"time"

	"base44/internal/model"
)

// AlertEvaluator compares KPI values against threshold rules and runs the
// anomaly detector over value series. Conditions are parsed once when the
// rule tables are built; rules whose condition strings fail to parse are
// dropped, so malformed conditions never match.
type AlertEvaluator struct {
	rules    map[string][]model.RuleSpec
	detector Detector
}

// rawRule is a rule as authored, with its condition still in string form
type rawRule struct {
	name        string
	kpiName     string
	condition   string
	severity    string
	description string
}

var builtinRules = map[string][]rawRule{
	VerticalMarketing: {
		{"Low Conversion Rate Alert", "lead_conversion_rate", "value < 10", model.SeverityHigh, "Lead conversion rate dropped below 10%"},
		{"High Cost Per Lead Alert", "cost_per_lead", "value > 50", model.SeverityMedium, "Cost per lead exceeded $50"},
		{"Revenue Drop Alert", "monthly_revenue", "value < 30000", model.SeverityHigh, "Monthly revenue dropped below $30,000"},
		{"Lead Quality Decline", "lead_quality_score", "value < 6.0", model.SeverityMedium, "Lead quality score below 6.0"},
	},
	VerticalClinic: {
		{"Long Wait Time Alert", "average_wait_time", "value > 60", model.SeverityHigh, "Average wait time exceeded 60 minutes"},
		{"Low Patient Volume Alert", "patient_volume", "value < 30", model.SeverityMedium, "Daily patient volume below 30"},
		{"High No-Show Rate Alert", "no_show_rate", "value > 20", model.SeverityMedium, "No-show rate exceeded 20%"},
		{"Low Provider Utilization", "provider_utilization", "value < 60", model.SeverityLow, "Provider utilization below 60%"},
	},
	VerticalPolice: {
		{"High Incident Volume Alert", "incident_volume", "value > 25", model.SeverityHigh, "Daily incident volume exceeded 25"},
		{"Slow Response Time Alert", "average_response_time", "value > 10", model.SeverityHigh, "Average response time exceeded 10 minutes"},
		{"Low Resolution Rate Alert", "case_resolution_rate", "value < 70", model.SeverityMedium, "Case resolution rate below 70%"},
		{"Low Community Satisfaction", "community_satisfaction", "value < 6.0", model.SeverityMedium, "Community satisfaction below 6.0"},
	},
}

func NewAlertEvaluator(detector Detector) *AlertEvaluator {
	rules := make(map[string][]model.RuleSpec, len(builtinRules))
	for vertical, raws := range builtinRules {
		specs := make([]model.RuleSpec, 0, len(raws))
		for _, r := range raws {
			cond, err := model.ParseCondition(r.condition)
			if err != nil {
				// fail closed: an unparseable rule never fires
				continue
			}
			specs = append(specs, model.RuleSpec{
				Name:        r.name,
				KPIName:     r.kpiName,
				Kind:        "threshold",
				Condition:   cond,
				Severity:    r.severity,
				Description: r.description,
			})
		}
		rules[vertical] = specs
	}
	return &AlertEvaluator{rules: rules, detector: detector}
}

// RulesFor returns the threshold rules applying to a vertical
func (e *AlertEvaluator) RulesFor(vertical string) []model.RuleSpec {
	return e.rules[vertical]
}

// EvaluateValue checks an incoming KPI value against the vertical's rules and
// returns the alerts to create
func (e *AlertEvaluator) EvaluateValue(def *model.KPIDefinition, kv *model.KPIValue) []model.Alert {
	key := KPIKey(def.Name)
	ts := kv.Timestamp

	var alerts []model.Alert
	for _, rule := range e.rules[def.Vertical] {
		if rule.KPIName != key || !rule.Condition.Matches(kv.Value) {
			continue
		}
		alerts = append(alerts, model.Alert{
			TenantID:        def.TenantID,
			KPIDefinitionID: &def.ID,
			Rule:            rule,
			Severity:        rule.Severity,
			TriggeredAt:     time.Now().UTC(),
			Details: model.AlertDetails{
				TriggeredValue: kv.Value,
				Threshold:      rule.Condition.String(),
				KPIName:        def.Name,
				ValueTimestamp: &ts,
			},
		})
	}
	return alerts
}

// minimum series length before anomaly detection runs
const minSeriesPoints = 10

// DetectAnomalies runs the detector over a KPI's value series and converts
// flagged points into alerts
func (e *AlertEvaluator) DetectAnomalies(def *model.KPIDefinition, series []model.KPIValue) []model.Alert {
	if e.detector == nil || len(series) < minSeriesPoints {
		return nil
	}

	values := make([]float64, len(series))
	times := make([]time.Time, len(series))
	for i, kv := range series {
		values[i] = kv.Value
		times[i] = kv.Timestamp
	}

	var alerts []model.Alert
	for _, anomaly := range e.detector.Detect(values, times) {
		score := anomaly.Score
		low := anomaly.ExpectedLow
		high := anomaly.ExpectedHigh
		at := anomaly.At
		alerts = append(alerts, model.Alert{
			TenantID:        def.TenantID,
			KPIDefinitionID: &def.ID,
			Rule: model.RuleSpec{
				Name:        "Anomaly Detected",
				KPIName:     KPIKey(def.Name),
				Kind:        "anomaly",
				Severity:    model.SeverityMedium,
				Description: "Anomaly detected in " + def.Name,
			},
			Severity:    model.SeverityMedium,
			TriggeredAt: time.Now().UTC(),
			Details: model.AlertDetails{
				TriggeredValue: anomaly.Value,
				KPIName:        def.Name,
				AnomalyScore:   &score,
				ExpectedLow:    &low,
				ExpectedHigh:   &high,
				Method:         anomaly.Method,
				ValueTimestamp: &at,
			},
		})
	}
	return alerts
}
