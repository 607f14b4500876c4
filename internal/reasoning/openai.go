package reasoning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/pratibhabharti18/Memory-Bank/internal/models"
)

const maxContextChars = 100

// OpenAIService implements Service with chat-completion calls that
// request fixed JSON shapes and validate them on receipt.
type OpenAIService struct {
	client      *openai.Client
	model       string
	chatModel   string
	maxTokens   int
	temperature float64
	maxInsights int
	logger      *zap.Logger
}

func NewOpenAIService(apiKey, model, chatModel string, maxTokens int, temperature float64, maxInsights int, logger *zap.Logger) *OpenAIService {
	if chatModel == "" {
		chatModel = model
	}
	return &OpenAIService{
		client:      openai.NewClient(apiKey),
		model:       model,
		chatModel:   chatModel,
		maxTokens:   maxTokens,
		temperature: temperature,
		maxInsights: maxInsights,
		logger:      logger,
	}
}

func (s *OpenAIService) Extract(ctx context.Context, req ExtractionRequest) (*Extraction, error) {
	prompt := fmt.Sprintf(`Analyze this content (%s source) and extract key metadata.

Return the response as a JSON object with this structure:
{
    "tags": ["tag1", "tag2", ...],
    "entities": ["entity1", "entity2", ...],
    "summary": "brief_summary"
}

Content: %s`, req.Mode, req.Text)

	message := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	}

	if req.Attachment != nil {
		parts := []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
		}
		if strings.HasPrefix(req.Attachment.MIMEType, "image/") {
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: dataURL(req.Attachment),
				},
			})
		} else {
			// Non-image binaries cannot ride along as vision parts, so
			// the attachment is described instead of embedded.
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("Attached file: %s (%s, %d bytes)",
					req.Attachment.Name, req.Attachment.MIMEType, len(req.Attachment.Data)),
			})
		}
		message = openai.ChatCompletionMessage{
			Role:         openai.ChatMessageRoleUser,
			MultiContent: parts,
		}
	}

	response, err := s.complete(ctx, s.model, []openai.ChatCompletionMessage{message})
	if err != nil {
		return nil, err
	}

	var extraction Extraction
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &extraction); err != nil {
		s.logger.Error("Failed to parse extraction response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("malformed extraction response: %w", err)
	}
	if extraction.Summary == "" {
		return nil, fmt.Errorf("malformed extraction response: missing summary")
	}
	if extraction.Tags == nil {
		extraction.Tags = []string{}
	}
	if extraction.Entities == nil {
		extraction.Entities = []string{}
	}
	return &extraction, nil
}

func (s *OpenAIService) DiscoverRelationships(ctx context.Context, notes []models.Note) (*models.KnowledgeGraph, error) {
	var contextText strings.Builder
	for _, n := range notes {
		contextText.WriteString(fmt.Sprintf("ID:%s|Title:%s|Content:%s\n",
			n.ID, n.Title, truncate(n.ExtractedText, maxContextChars)))
	}

	prompt := fmt.Sprintf(`Based on these notes, identify semantic relationships between them and key entities.

Return the response as a JSON object with this structure:
{
    "nodes": [{"id": "...", "name": "...", "type": "concept"|"entity"|"note", "val": 1}, ...],
    "links": [{"source": "node_id", "target": "node_id", "relationship": "..."}, ...]
}

Notes:
%s`, contextText.String())

	response, err := s.complete(ctx, s.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	var graph models.KnowledgeGraph
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &graph); err != nil {
		s.logger.Error("Failed to parse relationship response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("malformed relationship response: %w", err)
	}
	if err := validateGraph(&graph); err != nil {
		s.logger.Error("Relationship response failed validation",
			zap.Error(err),
			zap.String("response", response))
		return nil, err
	}
	return &graph, nil
}

func (s *OpenAIService) GenerateInsights(ctx context.Context, notes []models.Note) ([]models.Insight, error) {
	var bodies []string
	for _, n := range notes {
		bodies = append(bodies, n.ExtractedText)
	}

	prompt := fmt.Sprintf(`Analyze these notes and generate up to %d "Second Brain" insights.
Look for patterns, forgotten ideas, or potential connections the user might have missed.

Return the response as a JSON array:
[{"id": "...", "title": "...", "description": "...", "type": "pattern"|"suggestion"|"recap"}, ...]

Notes:
%s`, s.maxInsights, strings.Join(bodies, "\n---\n"))

	response, err := s.complete(ctx, s.model, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
	if err != nil {
		return nil, err
	}

	var insights []models.Insight
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &insights); err != nil {
		s.logger.Error("Failed to parse insight response",
			zap.Error(err),
			zap.String("response", response))
		return nil, fmt.Errorf("malformed insight response: %w", err)
	}
	insights, err = validateInsights(insights, s.maxInsights)
	if err != nil {
		s.logger.Error("Insight response failed validation",
			zap.Error(err),
			zap.String("response", response))
		return nil, err
	}
	return insights, nil
}

func (s *OpenAIService) Chat(ctx context.Context, query string, notes []models.Note, history []models.ChatMessage) (string, error) {
	var contextText strings.Builder
	for _, n := range notes {
		contextText.WriteString(fmt.Sprintf("[Source: %s] %s\n\n", n.Title, n.ExtractedText))
	}

	messages := []openai.ChatCompletionMessage{{
		Role: openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(`You are an AI Second Brain Assistant. Use the provided context from the user's personal notes to answer questions. If you don't know based on the notes, say so.

Context:
%s`, contextText.String()),
	}}
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: query,
	})

	answer, err := s.complete(ctx, s.chatModel, messages)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return "I couldn't find relevant information in your notes.", nil
	}
	return answer, nil
}

func (s *OpenAIService) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   s.maxTokens,
			Temperature: float32(s.temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("reasoning call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("reasoning call returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// stripCodeFence unwraps responses the model insists on fencing as
// ```json blocks.
func stripCodeFence(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func validateGraph(graph *models.KnowledgeGraph) error {
	ids := make(map[string]struct{}, len(graph.Nodes))
	for _, node := range graph.Nodes {
		if node.ID == "" || node.Name == "" {
			return fmt.Errorf("malformed relationship response: node missing id or name")
		}
		switch node.Type {
		case models.ConceptNode, models.EntityNode, models.NoteNode:
		default:
			return fmt.Errorf("malformed relationship response: unknown node type %q", node.Type)
		}
		ids[node.ID] = struct{}{}
	}
	for _, link := range graph.Links {
		if _, ok := ids[link.Source]; !ok {
			return fmt.Errorf("malformed relationship response: link source %q not in nodes", link.Source)
		}
		if _, ok := ids[link.Target]; !ok {
			return fmt.Errorf("malformed relationship response: link target %q not in nodes", link.Target)
		}
	}
	if graph.Nodes == nil {
		graph.Nodes = []models.GraphNode{}
	}
	if graph.Links == nil {
		graph.Links = []models.GraphLink{}
	}
	return nil
}

func validateInsights(insights []models.Insight, max int) ([]models.Insight, error) {
	for i := range insights {
		switch insights[i].Type {
		case models.PatternInsight, models.SuggestionInsight, models.RecapInsight:
		default:
			return nil, fmt.Errorf("malformed insight response: unknown insight type %q", insights[i].Type)
		}
		if insights[i].Title == "" {
			return nil, fmt.Errorf("malformed insight response: insight missing title")
		}
		if insights[i].ID == "" {
			insights[i].ID = uuid.New().String()
		}
	}
	if len(insights) > max {
		insights = insights[:max]
	}
	return insights, nil
}

// truncate cuts on a rune boundary so multibyte content never feeds
// invalid UTF-8 into the prompt context.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func dataURL(a *models.Attachment) string {
	return fmt.Sprintf("data:%s;base64,%s", a.MIMEType, base64.StdEncoding.EncodeToString(a.Data))
}
