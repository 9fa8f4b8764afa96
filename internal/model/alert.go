package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// Alert severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses derived from the acknowledgement and resolution fields
const (
	AlertActive       = "active"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
)

// RuleSpec is an alert rule with its condition parsed at creation time
type RuleSpec struct {
	Name        string    `json:"name"`
	KPIName     string    `json:"kpi_name,omitempty"`
	Kind        string    `json:"kind"` // "threshold" or "anomaly"
	Condition   Condition `json:"condition,omitempty"`
	Severity    string    `json:"severity"`
	Description string    `json:"description,omitempty"`
}

func (r RuleSpec) Value() (driver.Value, error) { return jsonValue(r) }
func (r *RuleSpec) Scan(src interface{}) error  { return jsonScan(r, src) }

// AlertDetails records what triggered the alert
type AlertDetails struct {
	TriggeredValue float64    `json:"triggered_value"`
	Threshold      string     `json:"threshold,omitempty"`
	KPIName        string     `json:"kpi_name,omitempty"`
	AnomalyScore   *float64   `json:"anomaly_score,omitempty"`
	ExpectedLow    *float64   `json:"expected_low,omitempty"`
	ExpectedHigh   *float64   `json:"expected_high,omitempty"`
	Method         string     `json:"method,omitempty"`
	ValueTimestamp *time.Time `json:"value_timestamp,omitempty"`
}

func (d AlertDetails) Value() (driver.Value, error) { return jsonValue(d) }
func (d *AlertDetails) Scan(src interface{}) error  { return jsonScan(d, src) }

// Alert is created when a rule condition or anomaly verdict fires. Rows are
// never deleted; acknowledge/resolve are the only mutations.
type Alert struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	TenantID        uint         `json:"tenant_id" gorm:"index;not null"`
	KPIDefinitionID *uint        `json:"kpi_id,omitempty" gorm:"index"`
	Rule            RuleSpec     `json:"rule" gorm:"type:jsonb"`
	Severity        string       `json:"severity" gorm:"type:varchar(50);default:'medium'"`
	Details         AlertDetails `json:"details" gorm:"type:jsonb"`
	TriggeredAt     time.Time    `json:"triggered_at"`
	Acknowledged    bool         `json:"acknowledged" gorm:"default:false"`
	AcknowledgedBy  *uint        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time   `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Status derives the state-machine position from the mutable fields
func (a *Alert) Status() string {
	if a.ResolvedAt != nil {
		return AlertResolved
	}
	if a.Acknowledged {
		return AlertAcknowledged
	}
	return AlertActive
}

// Acknowledge marks the alert as seen by a user; reversible
func (a *Alert) Acknowledge(userID uint) {
	now := time.Now().UTC()
	a.Acknowledged = true
	a.AcknowledgedBy = &userID
	a.AcknowledgedAt = &now
}

// Unacknowledge returns the alert to an unacknowledged-but-still-active state
func (a *Alert) Unacknowledge() {
	a.Acknowledged = false
	a.AcknowledgedBy = nil
	a.AcknowledgedAt = nil
}

// Resolve timestamps resolution; valid from any acknowledgement state
func (a *Alert) Resolve() {
	now := time.Now().UTC()
	a.ResolvedAt = &now
}

// Prediction stores one forecast run: the input snapshot and the output
// series. Append-only.
type Prediction struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	TenantID        uint           `json:"tenant_id" gorm:"index;not null"`
	KPIDefinitionID uint           `json:"kpi_id" gorm:"index;not null"`
	ModelName       string         `json:"model_name" gorm:"type:varchar(255);not null"`
	InputSnapshot   datatypes.JSON `json:"input_snapshot" gorm:"type:jsonb"`
	Output          datatypes.JSON `json:"output" gorm:"type:jsonb"`
	CreatedAt       time.Time      `json:"created_at"`
}
