package service

import (
	"sort"
	"strings"
)

// Supported verticals (industry templates)
const (
	VerticalMarketing = "marketing_agency"
	VerticalClinic    = "urgent_clinic"
	VerticalPolice    = "local_police"
)

// DefaultConfidenceThreshold marks the confidence above which a suggestion is
// applied without review
const DefaultConfidenceThreshold = 0.8

// Suggestion is one ranked source-to-target field pair
type Suggestion struct {
	SourceField string  `json:"source_field"`
	TargetField string  `json:"target_field"`
	Confidence  float64 `json:"confidence"`
	Transform   string  `json:"suggested_transformation"`
	Description string  `json:"description"`
}

// Suggester produces ranked mapping candidates for a sample row. The pipeline
// applies whatever mapping the caller confirms, independent of how the
// suggestions were generated, so alternative implementations (an LLM-backed
// one, say) can plug in here.
type Suggester interface {
	Suggest(connectorType, vertical string, sample map[string]string) []Suggestion
}

// StaticSuggester serves per-vertical suggestion tables
type StaticSuggester struct {
	tables map[string]map[string][]Suggestion
}

func NewStaticSuggester() *StaticSuggester {
	return &StaticSuggester{tables: map[string]map[string][]Suggestion{
		"csv": {
			VerticalMarketing: {
				{SourceField: "email", TargetField: "email", Confidence: 0.95, Transform: "none", Description: "Direct email mapping"},
				{SourceField: "full_name", TargetField: "full_name", Confidence: 0.92, Transform: "none", Description: "Direct name mapping"},
				{SourceField: "company", TargetField: "company", Confidence: 0.88, Transform: "none", Description: "Direct company mapping"},
				{SourceField: "source", TargetField: "source", Confidence: 0.90, Transform: "lowercase", Description: "Convert to lowercase for consistency"},
				{SourceField: "status", TargetField: "status", Confidence: 0.85, Transform: "normalize_status", Description: "Normalize status values"},
				{SourceField: "created_at", TargetField: "created_at", Confidence: 0.93, Transform: "parse_datetime", Description: "Parse datetime string"},
				{SourceField: "value", TargetField: "value", Confidence: 0.87, Transform: "parse_float", Description: "Parse numeric value"},
			},
			VerticalClinic: {
				{SourceField: "first_name", TargetField: "first_name", Confidence: 0.96, Transform: "none", Description: "Direct first name mapping"},
				{SourceField: "last_name", TargetField: "last_name", Confidence: 0.96, Transform: "none", Description: "Direct last name mapping"},
				{SourceField: "date_of_birth", TargetField: "date_of_birth", Confidence: 0.94, Transform: "parse_date", Description: "Parse date string"},
				{SourceField: "phone", TargetField: "phone", Confidence: 0.89, Transform: "normalize_phone", Description: "Normalize phone number format"},
				{SourceField: "email", TargetField: "email", Confidence: 0.91, Transform: "lowercase", Description: "Convert email to lowercase"},
				{SourceField: "insurance_provider", TargetField: "insurance_provider", Confidence: 0.88, Transform: "none", Description: "Direct insurance provider mapping"},
				{SourceField: "insurance_id", TargetField: "insurance_id", Confidence: 0.92, Transform: "none", Description: "Direct insurance ID mapping"},
			},
			VerticalPolice: {
				{SourceField: "incident_id", TargetField: "incident_id", Confidence: 0.98, Transform: "none", Description: "Direct incident ID mapping"},
				{SourceField: "incident_type", TargetField: "incident_type", Confidence: 0.90, Transform: "normalize_category", Description: "Normalize incident category"},
				{SourceField: "location", TargetField: "location", Confidence: 0.85, Transform: "geocode", Description: "Geocode location for mapping"},
				{SourceField: "reported_at", TargetField: "reported_at", Confidence: 0.94, Transform: "parse_datetime", Description: "Parse incident timestamp"},
				{SourceField: "officer_id", TargetField: "officer_id", Confidence: 0.92, Transform: "none", Description: "Direct officer ID mapping"},
				{SourceField: "status", TargetField: "status", Confidence: 0.88, Transform: "normalize_status", Description: "Normalize case status"},
			},
		},
		"hubspot": {
			VerticalMarketing: {
				{SourceField: "properties.email", TargetField: "email", Confidence: 0.95, Transform: "none", Description: "HubSpot contact email"},
				{SourceField: "properties.firstname", TargetField: "first_name", Confidence: 0.92, Transform: "none", Description: "HubSpot first name"},
				{SourceField: "properties.lastname", TargetField: "last_name", Confidence: 0.92, Transform: "none", Description: "HubSpot last name"},
				{SourceField: "properties.company", TargetField: "company", Confidence: 0.88, Transform: "none", Description: "HubSpot company"},
				{SourceField: "properties.lifecyclestage", TargetField: "status", Confidence: 0.84, Transform: "normalize_status", Description: "HubSpot lifecycle stage"},
			},
		},
		"google_ads": {
			VerticalMarketing: {
				{SourceField: "campaign.id", TargetField: "campaign_id", Confidence: 0.96, Transform: "none", Description: "Google Ads campaign id"},
				{SourceField: "campaign.name", TargetField: "campaign_name", Confidence: 0.93, Transform: "none", Description: "Google Ads campaign name"},
				{SourceField: "metrics.cost_micros", TargetField: "cost", Confidence: 0.90, Transform: "micros_to_currency", Description: "Cost in micros to currency"},
				{SourceField: "metrics.conversions", TargetField: "conversion", Confidence: 0.89, Transform: "parse_float", Description: "Conversion count"},
			},
		},
	}}
}

// Suggest returns the table entries whose source field appears in the sample
// row, ranked by confidence. With no sample the full table is returned.
func (s *StaticSuggester) Suggest(connectorType, vertical string, sample map[string]string) []Suggestion {
	table := s.tables[connectorType][vertical]

	var out []Suggestion
	if len(sample) == 0 {
		out = append(out, table...)
	} else {
		for _, sg := range table {
			if sampleHasField(sample, sg.SourceField) {
				out = append(out, sg)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func sampleHasField(sample map[string]string, field string) bool {
	for key := range sample {
		if strings.EqualFold(key, field) {
			return true
		}
	}
	return false
}

// Vertical indicator terms, checked against the sample row's keys and values
var verticalIndicators = []struct {
	vertical   string
	indicators []string
}{
	{VerticalMarketing, []string{"email", "lead", "campaign", "conversion", "source"}},
	{VerticalClinic, []string{"patient", "visit", "diagnosis", "insurance", "provider"}},
	{VerticalPolice, []string{"incident", "officer", "suspect", "case", "crime"}},
}

// DetectVertical guesses the industry template from sample data content
func DetectVertical(sample map[string]string) string {
	var blob strings.Builder
	for key, value := range sample {
		blob.WriteString(strings.ToLower(key))
		blob.WriteString(" ")
		blob.WriteString(strings.ToLower(value))
		blob.WriteString(" ")
	}
	content := blob.String()

	for _, vi := range verticalIndicators {
		for _, indicator := range vi.indicators {
			if strings.Contains(content, indicator) {
				return vi.vertical
			}
		}
	}
	return VerticalMarketing
}
