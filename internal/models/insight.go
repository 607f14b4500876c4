package models

type InsightType string

const (
	PatternInsight    InsightType = "pattern"
	SuggestionInsight InsightType = "suggestion"
	RecapInsight      InsightType = "recap"
)

// Insight is a short AI-generated observation over the active note set.
// Derived state, same ownership and discard policy as the graph.
type Insight struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Type        InsightType `json:"type"`
}
