package advisor

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agrowhq/field-analytics/internal/analytics"
)

// contextMetrics are the cached tiles folded into the advisor prompt.
var contextMetrics = []string{analytics.IndexNDVI, analytics.IndexSMI, analytics.IndexNDRE}

const systemPrompt = "You are an agronomy advisor for smallholder farmers. " +
	"Answer using the field context provided. Be concrete and brief; " +
	"give actionable steps, not generic advice. If the context lacks the " +
	"data needed, say so."

// Advisor answers farmer questions grounded in the field's cached analytics.
// It never triggers network fetches of its own; missing tiles are simply
// absent from the prompt.
type Advisor struct {
	client *openai.Client
	model  string
	tiles  *analytics.Service
}

// New builds an Advisor. An empty apiKey disables the advisor; Ask then
// returns an error. baseURL overrides the OpenAI endpoint for compatible
// services (e.g. Groq).
func New(apiKey, baseURL, model string, tiles *analytics.Service) *Advisor {
	a := &Advisor{model: model, tiles: tiles}
	if apiKey == "" {
		return a
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	a.client = openai.NewClientWithConfig(cfg)
	return a
}

// Enabled reports whether an API key was configured.
func (a *Advisor) Enabled() bool {
	return a.client != nil
}

// Ask answers a question about a field using cached analytics as context.
func (a *Advisor) Ask(ctx context.Context, field analytics.FieldPoint, question string) (string, error) {
	if a.client == nil {
		return "", fmt.Errorf("advisor is not configured")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question must not be empty")
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(a.fieldContext(ctx, field), question)},
		},
		MaxTokens: 600,
	})
	if err != nil {
		return "", fmt.Errorf("advisor completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("advisor returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// fieldContext collects whatever tiles are already cached for the field.
func (a *Advisor) fieldContext(ctx context.Context, field analytics.FieldPoint) []*analytics.HeatmapResult {
	var out []*analytics.HeatmapResult
	for _, metric := range contextMetrics {
		if rec, ok := a.tiles.PeekTile(ctx, field, metric); ok {
			out = append(out, rec)
		}
	}
	return out
}

// BuildPrompt renders a compact textual context followed by the question.
func BuildPrompt(tiles []*analytics.HeatmapResult, question string) string {
	var b strings.Builder

	if len(tiles) == 0 {
		b.WriteString("FIELD CONTEXT: no recent analytics available.\n")
	} else {
		b.WriteString("FIELD CONTEXT:\n")
		for _, t := range tiles {
			fmt.Fprintf(&b, "- %s: mean %.3f (range %.3f to %.3f)", t.Metric, t.MeanValue, t.MinValue, t.MaxValue)
			if t.Level != "" {
				fmt.Fprintf(&b, ", level %s", t.Level)
			}
			if t.Analysis != "" {
				fmt.Fprintf(&b, ". %s", t.Analysis)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQUESTION: ")
	b.WriteString(question)
	return b.String()
}
