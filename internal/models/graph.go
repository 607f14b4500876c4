package models

type GraphNodeType string

const (
	ConceptNode GraphNodeType = "concept"
	EntityNode  GraphNodeType = "entity"
	NoteNode    GraphNodeType = "note"
)

// GraphNode represents either a note or an extracted concept/entity in
// the knowledge graph. Val is a relative weight used for display sizing.
type GraphNode struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Type GraphNodeType `json:"type"`
	Val  float64       `json:"val"`
}

// GraphLink is a labeled semantic relationship between two graph nodes.
type GraphLink struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// KnowledgeGraph is derived state: recomputed wholesale on every
// active-set change and never persisted independently of the notes.
type KnowledgeGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
