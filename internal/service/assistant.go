package service

import (
	"fmt"
	"strings"
	"time"
)

// KPISnapshot is the latest value of one KPI, prepared for the assistant
type KPISnapshot struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertSnapshot is one unresolved alert, prepared for the assistant
type AlertSnapshot struct {
	Name        string    `json:"name"`
	Severity    string    `json:"severity"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// TenantSnapshot is the tenant-scoped data the assistant answers from. The
// handler assembles it; the responder never touches the database.
type TenantSnapshot struct {
	KPIs   []KPISnapshot
	Alerts []AlertSnapshot
}

// SuggestedAction is one follow-up the assistant proposes
type SuggestedAction struct {
	ActionType  string  `json:"action_type"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// AssistantResponse is the assistant's answer with provenance
type AssistantResponse struct {
	Answer           string            `json:"answer"`
	SuggestedActions []SuggestedAction `json:"suggested_actions"`
	Sources          []string          `json:"sources"`
	ConfidenceScore  float64           `json:"confidence_score"`
}

// Responder answers a question over a tenant snapshot. The keyword
// implementation below is deterministic; an LLM-backed responder plugs in
// behind the same interface.
type Responder interface {
	Answer(question string, snapshot TenantSnapshot) AssistantResponse
}

// KeywordResponder routes questions by keyword and builds answers from the
// tenant's actual rows
type KeywordResponder struct{}

func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{}
}

func (r *KeywordResponder) Answer(question string, snapshot TenantSnapshot) AssistantResponse {
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "alert"):
		return r.alertAnswer(snapshot)
	case strings.Contains(q, "kpi"), strings.Contains(q, "metric"), strings.Contains(q, "performance"):
		return r.kpiAnswer(snapshot)
	default:
		return r.overviewAnswer(snapshot)
	}
}

func (r *KeywordResponder) alertAnswer(snapshot TenantSnapshot) AssistantResponse {
	if len(snapshot.Alerts) == 0 {
		return AssistantResponse{
			Answer:          "There are no unresolved alerts right now.",
			Sources:         []string{"alerts"},
			ConfidenceScore: 0.9,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You have %d unresolved alert(s). ", len(snapshot.Alerts))
	for i, a := range snapshot.Alerts {
		if i >= 3 {
			fmt.Fprintf(&b, "...and %d more.", len(snapshot.Alerts)-3)
			break
		}
		fmt.Fprintf(&b, "%q (%s severity, triggered %s). ", a.Name, a.Severity, a.TriggeredAt.Format("2006-01-02"))
	}

	return AssistantResponse{
		Answer: b.String(),
		SuggestedActions: []SuggestedAction{
			{ActionType: "review_alerts", Title: "Review open alerts", Description: "Acknowledge or resolve the listed alerts", Confidence: 0.85},
		},
		Sources:         []string{"alerts"},
		ConfidenceScore: 0.85,
	}
}

func (r *KeywordResponder) kpiAnswer(snapshot TenantSnapshot) AssistantResponse {
	if len(snapshot.KPIs) == 0 {
		return AssistantResponse{
			Answer: "No KPI values have been computed yet. Evaluate a KPI definition to get started.",
			SuggestedActions: []SuggestedAction{
				{ActionType: "evaluate_kpi", Title: "Evaluate a KPI", Description: "Run an evaluation over your normalized records", Confidence: 0.8},
			},
			Sources:         []string{"kpi_values"},
			ConfidenceScore: 0.7,
		}
	}

	var b strings.Builder
	b.WriteString("Latest KPI values: ")
	for i, k := range snapshot.KPIs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = %.2f", k.Name, k.Value)
	}
	b.WriteString(".")

	return AssistantResponse{
		Answer:          b.String(),
		Sources:         []string{"kpi_values"},
		ConfidenceScore: 0.85,
	}
}

func (r *KeywordResponder) overviewAnswer(snapshot TenantSnapshot) AssistantResponse {
	answer := fmt.Sprintf("You are tracking %d KPI(s) and have %d unresolved alert(s). Ask about KPIs or alerts for details.",
		len(snapshot.KPIs), len(snapshot.Alerts))

	var actions []SuggestedAction
	if len(snapshot.Alerts) > 0 {
		actions = append(actions, SuggestedAction{
			ActionType: "review_alerts", Title: "Review open alerts",
			Description: "Acknowledge or resolve open alerts", Confidence: 0.75,
		})
	}

	return AssistantResponse{
		Answer:           answer,
		SuggestedActions: actions,
		Sources:          []string{"kpi_values", "alerts"},
		ConfidenceScore:  0.6,
	}
}
