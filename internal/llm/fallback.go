package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/tagging"
)

// FallbackClient implements Client deterministically, without any network
// call. It backs LLMGateway's required "fallback on failure" behavior for
// InferTags and serves as the default when no provider is configured.
type FallbackClient struct {
	dict *tagging.Dictionary
}

// NewFallbackClient creates a new FallbackClient.
func NewFallbackClient() *FallbackClient {
	return &FallbackClient{dict: tagging.NewDictionary()}
}

// InferTags extracts tags from prompt tokens via the keyword dictionary
// (tagging.ExtractTags), falling back to raw significant tokens when the
// dictionary matches nothing, and reports a fixed temperature of 0.5
// since no LLM-derived urgency/production/exploration signal is available
// without a real model call. Config.DefaultTemperature is not consulted.
func (c *FallbackClient) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	tags := tagging.ExtractTags(prompt, c.dict)
	if maxTags > 0 && len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	if tags == nil {
		tags = fallbackTagsFromTokens(prompt)
	}
	return &models.TagInference{
		Tags:        tags,
		Temperature: 0.5,
		Complexity:  "unknown",
	}, nil
}

func fallbackTagsFromTokens(text string) []string {
	tokens := tagging.SignificantTokens(tagging.Tokenize(text))
	seen := make(map[string]bool)
	var out []string
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) >= 3 {
			break
		}
	}
	if len(out) == 0 {
		out = []string{"general"}
	}
	return tagging.Normalize(out)
}

// Reflect is not supported by the deterministic fallback: reflection
// requires genuine language understanding of a transcript's lessons, which
// a rule-based client cannot produce. Callers with no working LLM client
// configured should skip reflection entirely rather than call this.
func (c *FallbackClient) Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error) {
	return nil, fmt.Errorf("fallback client does not support reflection")
}

// MigrateToWhenDo makes a best-effort mechanical split on the first comma.
// Confidence is always low (0.3), well below the 0.7 threshold
// (constants.DefaultMigrationConfidenceThreshold) that
// triggers.Handlers.migrateLegacyKPTs requires before accepting a
// migration, so this effectively always
// preserves the legacy shape — the correct, safe default for a
// non-semantic splitter.
func (c *FallbackClient) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	when, do := mechanicalSplit(text)
	return &models.MigrationResult{When: when, Do: do, Confidence: 0.3}, nil
}

func mechanicalSplit(text string) (when, do string) {
	if idx := strings.Index(text, ","); idx > 0 && idx < len(text)-1 {
		return strings.TrimSpace(text[:idx]), strings.TrimSpace(text[idx+1:])
	}
	return "this applies", text
}

// Available always returns true: the fallback has no external dependency
// and is always ready, by design, as the backstop the rest of the system
// can fall through to.
func (c *FallbackClient) Available() bool {
	return true
}
