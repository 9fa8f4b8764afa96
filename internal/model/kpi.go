package model

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Aggregation kinds the metric engine evaluates. The set is closed: formulas
// are data, never code.
const (
	FormulaRatio   = "ratio"
	FormulaSum     = "sum"
	FormulaAverage = "average"
	FormulaCount   = "count"
	FormulaRate    = "rate"
)

// Calculation methods recorded in provenance
const (
	CalcFormulaBased  = "formula_based"
	CalcMockGenerated = "mock_generated"
)

// FormulaSpec describes one aggregation over normalized record fields.
//
//	ratio:   count(rows where FilterField == FilterEquals) / count(rows) * Scale
//	sum:     sum(Field) * Scale
//	average: sum(Field) / count(rows where Field present)
//	count:   count(rows) * Scale
//	rate:    count(rows where FilterField == FilterEquals) / days in window
type FormulaSpec struct {
	Kind         string  `json:"kind"`
	Field        string  `json:"field,omitempty"`
	FilterField  string  `json:"filter_field,omitempty"`
	FilterEquals string  `json:"filter_equals,omitempty"`
	Scale        float64 `json:"scale,omitempty"`
	Text         string  `json:"text,omitempty"` // human-readable formula, kept for provenance
}

func (f FormulaSpec) Value() (driver.Value, error) { return jsonValue(f) }
func (f *FormulaSpec) Scan(src interface{}) error  { return jsonScan(f, src) }

// KPIDefinition is a named metric scoped to a tenant and vertical
type KPIDefinition struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Vertical  string         `json:"vertical" gorm:"type:varchar(100);not null"`
	Formula   FormulaSpec    `json:"formula" gorm:"type:jsonb"`
	Window    string         `json:"window" gorm:"type:varchar(50);default:'daily'"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Provenance records how a KPI value was computed
type Provenance struct {
	SourceRecords     int    `json:"source_records"`
	CalculationMethod string `json:"calculation_method"`
	Formula           string `json:"formula,omitempty"`
	Vertical          string `json:"vertical,omitempty"`
}

func (p Provenance) Value() (driver.Value, error) { return jsonValue(p) }
func (p *Provenance) Scan(src interface{}) error  { return jsonScan(p, src) }

// KPIValue is one computed point of a KPI's append-only time series
type KPIValue struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	TenantID        uint       `json:"tenant_id" gorm:"index;not null"`
	KPIDefinitionID uint       `json:"kpi_id" gorm:"index;not null"`
	Timestamp       time.Time  `json:"timestamp" gorm:"index"`
	Value           float64    `json:"value" gorm:"not null"`
	Provenance      Provenance `json:"provenance" gorm:"type:jsonb"`
	CreatedAt       time.Time  `json:"created_at"`

	KPIDefinition KPIDefinition `json:"-" gorm:"foreignKey:KPIDefinitionID"`
}
