package reasoning

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCodeFence(tt.response))
		})
	}
}

func TestValidateGraph(t *testing.T) {
	valid := &models.KnowledgeGraph{
		Nodes: []models.GraphNode{
			{ID: "n1", Name: "Note one", Type: models.NoteNode, Val: 2},
			{ID: "c1", Name: "Databases", Type: models.ConceptNode, Val: 1},
		},
		Links: []models.GraphLink{{Source: "n1", Target: "c1", Relationship: "mentions"}},
	}
	require.NoError(t, validateGraph(valid))

	missingName := &models.KnowledgeGraph{
		Nodes: []models.GraphNode{{ID: "n1", Type: models.NoteNode}},
	}
	require.Error(t, validateGraph(missingName))

	badType := &models.KnowledgeGraph{
		Nodes: []models.GraphNode{{ID: "n1", Name: "x", Type: "galaxy"}},
	}
	require.Error(t, validateGraph(badType))

	danglingLink := &models.KnowledgeGraph{
		Nodes: []models.GraphNode{{ID: "n1", Name: "x", Type: models.NoteNode}},
		Links: []models.GraphLink{{Source: "n1", Target: "ghost", Relationship: "related"}},
	}
	require.Error(t, validateGraph(danglingLink))
}

func TestValidateGraphNormalizesNilSlices(t *testing.T) {
	graph := &models.KnowledgeGraph{}
	require.NoError(t, validateGraph(graph))
	assert.NotNil(t, graph.Nodes)
	assert.NotNil(t, graph.Links)
}

func TestValidateInsights(t *testing.T) {
	insights := []models.Insight{
		{Title: "A pattern", Type: models.PatternInsight},
		{ID: "kept", Title: "A recap", Type: models.RecapInsight},
	}
	out, err := validateInsights(insights, 3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.NotEmpty(t, out[0].ID, "missing ids are filled in")
	assert.Equal(t, "kept", out[1].ID)

	_, err = validateInsights([]models.Insight{{Title: "x", Type: "prophecy"}}, 3)
	require.Error(t, err)

	_, err = validateInsights([]models.Insight{{Type: models.RecapInsight}}, 3)
	require.Error(t, err, "title is required")
}

func TestValidateInsightsCapsLength(t *testing.T) {
	var insights []models.Insight
	for i := 0; i < 5; i++ {
		insights = append(insights, models.Insight{ID: "i", Title: "t", Type: models.RecapInsight})
	}
	out, err := validateInsights(insights, 3)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-te", truncate("exactly-te", 10))
	assert.Equal(t, "this is lo...", truncate("this is longer", 10))

	// Cutting inside a multibyte rune must not produce invalid UTF-8.
	got := truncate("日本語のノートです", 4)
	assert.Equal(t, "日本語の...", got)
	assert.True(t, utf8.ValidString(got))
}
