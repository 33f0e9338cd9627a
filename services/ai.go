package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"tripgenie/engine"
)

const defaultAIModel = "sonar"

// aiMaxDestinations limits how many ranked results go into the prompt.
const aiMaxDestinations = 3

// InsightWriter rewrites the deterministic insights into friendlier prose
// and drafts a short itinerary per destination, via an OpenAI-compatible
// chat API. It is strictly optional: any failure falls back to the
// deterministic sentences.
type InsightWriter struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewInsightWriter builds a writer from AI_API_KEY / AI_BASE_URL / AI_MODEL.
// Returns nil when no key is configured; callers treat a nil writer as
// "deterministic insights only".
func NewInsightWriter(logger *zap.Logger) *InsightWriter {
	apiKey := os.Getenv("AI_API_KEY")
	if apiKey == "" {
		logger.Info("AI_API_KEY not set, insights will use the deterministic generator")
		return nil
	}

	cfg := openai.DefaultConfig(apiKey)
	if base := os.Getenv("AI_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}
	model := os.Getenv("AI_MODEL")
	if model == "" {
		model = defaultAIModel
	}

	return &InsightWriter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

// aiResponse is the strict JSON shape requested from the model.
type aiResponse struct {
	Insights    []string            `json:"insights"`
	Itineraries map[string][]string `json:"itineraries"`
}

// Rewrite asks the model for paraphrased insights plus itinerary bullets.
// On any error or malformed output it returns the fallback insights and no
// itineraries, so the caller never surfaces an empty insight list.
func (w *InsightWriter) Rewrite(ctx context.Context, results []engine.DestinationResult, days int, fallback []string) ([]string, map[string][]string) {
	if w == nil {
		return fallback, nil
	}

	insights, itineraries, err := w.generate(ctx, results, days)
	if err != nil {
		w.logger.Warn("AI insight rewrite failed, using deterministic insights", zap.Error(err))
		return fallback, nil
	}
	if len(insights) == 0 {
		insights = fallback
	}
	return insights, itineraries
}

func (w *InsightWriter) generate(ctx context.Context, results []engine.DestinationResult, days int) ([]string, map[string][]string, error) {
	prompt, err := buildInsightPrompt(results, days)
	if err != nil {
		return nil, nil, err
	}

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     w.model,
		MaxTokens: 400,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, nil, errors.New("empty completion")
	}

	content := stripCodeFences(resp.Choices[0].Message.Content)

	var parsed aiResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, nil, fmt.Errorf("parse AI response: %w", err)
	}
	return parsed.Insights, parsed.Itineraries, nil
}

func buildInsightPrompt(results []engine.DestinationResult, days int) (string, error) {
	ranked := make([]engine.DestinationResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Total < ranked[j].Total })
	if len(ranked) > aiMaxDestinations {
		ranked = ranked[:aiMaxDestinations]
	}

	type promptRow struct {
		Destination string               `json:"destination"`
		Country     string               `json:"country"`
		Total       float64              `json:"total"`
		FlightCost  float64              `json:"flight_cost"`
		Breakdown   engine.CostBreakdown `json:"breakdown"`
		VisaFee     float64              `json:"visa_fee"`
	}
	rows := make([]promptRow, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, promptRow{
			Destination: r.Destination,
			Country:     r.Country,
			Total:       r.Total,
			FlightCost:  r.FlightCost,
			Breakdown:   r.Breakdown,
			VisaFee:     r.VisaFee,
		})
	}
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are an expert travel planner.

Destinations (cheapest first):
%s

Trip length: %d days.

1) Write one short cost-saving insight sentence per destination comparison.
2) For EACH destination, write 3-6 bullet points for an efficient, country-level itinerary.

Respond as valid JSON only:
{
  "insights": ["sentence 1", "sentence 2"],
  "itineraries": {
    "[destination label exactly as given]": ["bullet 1", "bullet 2"]
  }
}`, string(payload), days), nil
}

// stripCodeFences removes a surrounding markdown code fence, which some
// models emit even in JSON mode.
func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	firstNewline := strings.Index(content, "\n")
	lastFence := strings.LastIndex(content, "```")
	if firstNewline == -1 || lastFence <= firstNewline {
		return content
	}
	return strings.TrimSpace(content[firstNewline+1 : lastFence])
}
