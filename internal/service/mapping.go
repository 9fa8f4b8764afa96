package service

import (
	"strconv"
	"strings"
	"time"
)

// FieldMapping maps source column names to canonical target fields. The
// caller confirms the mapping; how suggestions were generated is irrelevant
// here.
type FieldMapping map[string]string

// NormalizedRow is one ingest row after mapping and per-field transformation
type NormalizedRow struct {
	RowIndex   int
	EntityType string
	Fields     map[string]interface{}
}

// NormalizeRows applies a confirmed field mapping to raw rows. Transformation
// failures are per-field and non-fatal: the raw string value is kept. The
// function is pure, so re-running over the same ingest and mapping yields
// identical rows.
func NormalizeRows(rows []map[string]string, mapping FieldMapping) []NormalizedRow {
	normalized := make([]NormalizedRow, 0, len(rows))
	for i, row := range rows {
		fields := make(map[string]interface{})
		for sourceField, targetField := range mapping {
			value, ok := row[sourceField]
			if !ok {
				continue
			}
			fields[targetField] = TransformValue(value, targetField)
		}
		normalized = append(normalized, NormalizedRow{
			RowIndex:   i,
			EntityType: ClassifyEntity(fields),
			Fields:     fields,
		})
	}
	return normalized
}

// Accepted timestamp layouts for date-like target fields
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Truthy values for boolean target fields
var truthyValues = map[string]bool{
	"true": true, "1": true, "yes": true, "active": true, "converted": true,
}

// TransformValue coerces a raw cell value based on its target field: case
// folding for identity-like fields, RFC3339 for dates, float for money and
// amounts, boolean for flags. On failure the raw string is returned unchanged.
func TransformValue(value, targetField string) interface{} {
	if value == "" {
		return nil
	}

	switch targetField {
	case "email", "source":
		return strings.ToLower(strings.TrimSpace(value))
	}

	if strings.Contains(targetField, "date") || strings.Contains(targetField, "time") {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, value); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
		return value
	}

	switch targetField {
	case "value", "cost", "budget", "amount":
		cleaned := strings.NewReplacer("$", "", ",", "").Replace(value)
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f
		}
		return value
	case "active", "enabled", "converted":
		return truthyValues[strings.ToLower(value)]
	}

	return value
}

// Entity classification: which canonical fields are present after mapping
// decides the record's entity type. Checked in order; first match wins.
var entitySignatures = []struct {
	entityType string
	fields     []string
}{
	{"lead", []string{"email", "lead_id", "conversion"}},
	{"campaign", []string{"campaign_id", "budget", "platform"}},
	{"patient", []string{"patient_id", "first_name", "last_name"}},
	{"visit", []string{"visit_id", "chief_complaint", "diagnosis"}},
	{"incident", []string{"incident_id", "incident_type", "location"}},
}

// ClassifyEntity determines the entity type from the mapped fields
func ClassifyEntity(fields map[string]interface{}) string {
	for _, sig := range entitySignatures {
		for _, field := range sig.fields {
			if _, ok := fields[field]; ok {
				return sig.entityType
			}
		}
	}
	return "record"
}
