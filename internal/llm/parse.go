package llm

import (
	"encoding/json"
	"fmt"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/perrors"
	"github.com/playbookhq/engine/internal/tagging"
)

// These wire shapes mirror the JSON the prompt templates in prompts.go
// instruct the model to return. Any malformed reply is a schema error,
// never retried (per the LLMGateway contract).

type tagInferenceWire struct {
	Tags        []string `json:"tags"`
	Temperature float64  `json:"temperature"`
	Complexity  string   `json:"complexity"`
}

func parseTagInference(response string) (*models.TagInference, error) {
	raw := ExtractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON found in tagger response", perrors.ErrLLMSchema)
	}
	var wire tagInferenceWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrLLMSchema, err)
	}
	if wire.Temperature < 0 || wire.Temperature > 1 {
		return nil, fmt.Errorf("%w: temperature %f out of [0,1]", perrors.ErrLLMSchema, wire.Temperature)
	}
	return &models.TagInference{
		Tags:        tagging.Normalize(wire.Tags),
		Temperature: wire.Temperature,
		Complexity:  wire.Complexity,
	}, nil
}

type migrationWire struct {
	When       string  `json:"when"`
	Do         string  `json:"do"`
	Confidence float64 `json:"confidence"`
}

func parseMigrationResult(response string) (*models.MigrationResult, error) {
	raw := ExtractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON found in migration response", perrors.ErrLLMSchema)
	}
	var wire migrationWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrLLMSchema, err)
	}
	return &models.MigrationResult{When: wire.When, Do: wire.Do, Confidence: wire.Confidence}, nil
}

type newKPTWire struct {
	Text            string   `json:"text,omitempty"`
	When            string   `json:"when,omitempty"`
	Do              string   `json:"do,omitempty"`
	Tags            []string `json:"tags"`
	EffectRating    *float64 `json:"effect_rating,omitempty"`
	RiskLevel       *float64 `json:"risk_level,omitempty"`
	InnovationLevel *float64 `json:"innovation_level,omitempty"`
}

type deltaWire struct {
	Name         string   `json:"name"`
	Verdict      string   `json:"verdict"`
	TagAdditions []string `json:"tag_additions,omitempty"`
	TextRewrite  string   `json:"text_rewrite,omitempty"`
}

type mergeWire struct {
	Survivor   string   `json:"survivor"`
	Absorbed   []string `json:"absorbed"`
	Similarity float64  `json:"similarity"`
}

type reflectionWire struct {
	NewKPTs    []newKPTWire `json:"new_kpts"`
	Deltas     []deltaWire  `json:"deltas"`
	Merges     []mergeWire  `json:"merges"`
	Promotions []string     `json:"promotions"`
}

func parseReflectionResult(response string) (*models.ReflectionResult, error) {
	raw := ExtractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON found in reflection response", perrors.ErrLLMSchema)
	}
	var wire reflectionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrLLMSchema, err)
	}

	result := &models.ReflectionResult{
		Promotions: wire.Promotions,
	}

	for _, n := range wire.NewKPTs {
		result.NewKPTs = append(result.NewKPTs, models.NewKPT{
			Text:            n.Text,
			When:            n.When,
			Do:              n.Do,
			Tags:            tagging.Normalize(n.Tags),
			EffectRating:    n.EffectRating,
			RiskLevel:       n.RiskLevel,
			InnovationLevel: n.InnovationLevel,
		})
	}

	for _, d := range wire.Deltas {
		verdict := models.Verdict(d.Verdict)
		result.Deltas = append(result.Deltas, models.Delta{
			Name:         d.Name,
			ScoreDelta:   verdict.ScoreDelta(),
			TagAdditions: tagging.Normalize(d.TagAdditions),
			TextRewrite:  d.TextRewrite,
		})
	}

	for _, m := range wire.Merges {
		result.Merges = append(result.Merges, models.MergeGroup{
			Survivor:   m.Survivor,
			Absorbed:   m.Absorbed,
			Similarity: m.Similarity,
		})
	}

	return result, nil
}
