package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/papersift/internal/core/domain"
)

// ErrInvalidResponse marks a payload that does not match the verdict schema.
var ErrInvalidResponse = errors.New("invalid classification response")

// Verdict is the validated payload returned by the model.
type Verdict struct {
	IsPositive bool
	Categories []string
	Confidence domain.Confidence
	Reasoning  string
}

type verdictPayload struct {
	IsPositive *bool    `json:"is_positive"`
	Categories []string `json:"categories"`
	Confidence string   `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ParseVerdict decodes and validates raw model output.
// Markdown code fences around the JSON are tolerated.
func ParseVerdict(raw string) (Verdict, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return Verdict{}, fmt.Errorf("%w: empty response", ErrInvalidResponse)
	}

	var p verdictPayload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if p.IsPositive == nil {
		return Verdict{}, fmt.Errorf("%w: missing is_positive", ErrInvalidResponse)
	}

	confidence, ok := domain.ParseConfidence(p.Confidence)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: unknown confidence %q", ErrInvalidResponse, p.Confidence)
	}

	categories := make([]string, 0, len(p.Categories))
	for _, c := range p.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	return Verdict{
		IsPositive: *p.IsPositive,
		Categories: categories,
		Confidence: confidence,
		Reasoning:  strings.TrimSpace(p.Reasoning),
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// responseSchema describes the verdict for backends that support structured output.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"is_positive": map[string]any{"type": "BOOLEAN"},
		"categories": map[string]any{
			"type":  "ARRAY",
			"items": map[string]any{"type": "STRING"},
		},
		"confidence": map[string]any{
			"type": "STRING",
			"enum": []string{"high", "medium", "low"},
		},
		"reasoning": map[string]any{"type": "STRING"},
	},
	"required": []string{"is_positive", "categories", "confidence", "reasoning"},
}
