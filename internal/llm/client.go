// Package llm provides the single typed entry point to the external
// language model: tag inference, reflection, and legacy-to-when/do
// migration. It supports multiple backends (Anthropic, OpenAI, and a
// deterministic rule-based fallback) behind one Client interface, and a
// Gateway that wraps any Client with the retry, timeout, schema-validation,
// and secret-redaction discipline every LLMGateway method must enforce.
package llm

import (
	"context"
	"time"

	"github.com/playbookhq/engine/internal/models"
)

// ClientConfig configures an LLM client.
type ClientConfig struct {
	// Provider identifies the backend: "anthropic", "openai", or "fallback".
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the provider (unused for fallback).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL is carried here for callers, but neither AnthropicClient nor
	// OpenAIClient reads it: both always call their fixed default endpoints.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Model is the model identifier to use for requests.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// Timeout is the maximum duration to wait for a single response,
	// independent of the caller-supplied handler deadline.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns a ClientConfig with sensible defaults.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Provider: "fallback",
		Timeout:  30 * time.Second,
	}
}

// RedactedAPIKey renders the API key safe for logs: first4...last4, or
// "(set)" if too short to redact meaningfully, or "" if unset.
func (c ClientConfig) RedactedAPIKey() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) < 12 {
		return "(set)"
	}
	return c.APIKey[:4] + "..." + c.APIKey[len(c.APIKey)-4:]
}

// String implements fmt.Stringer without ever exposing the raw API key.
func (c ClientConfig) String() string {
	return "ClientConfig{Provider:" + c.Provider + ", Model:" + c.Model + ", APIKey:" + c.RedactedAPIKey() + "}"
}

// Client is the raw backend interface. Every method may be called
// concurrently and must honor ctx's deadline.
type Client interface {
	// InferTags proposes a tag set, a temperature in [0,1], and a
	// complexity label for prompt, given recent conversation history.
	InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error)

	// Reflect performs the combined extraction-and-evaluation pass: it
	// proposes new KPTs, per-existing-KPT verdicts (folded into deltas by
	// the caller), merge groups, and promotions.
	Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error)

	// MigrateToWhenDo proposes a when/do split for a legacy single-text
	// KPT, with a confidence the caller compares against a threshold.
	MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error)

	// Available reports whether the client is configured and ready.
	Available() bool
}
