package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/playbookhq/engine/internal/models"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	defaultModel        = "claude-3-haiku-20240307"
)

// AnthropicClient implements Client using the Anthropic Messages API.
type AnthropicClient struct {
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	templates  *Templates
}

// NewAnthropicClient creates a new AnthropicClient. If config.APIKey is
// empty, it falls back to the ANTHROPIC_API_KEY environment variable; if
// config.Model is empty, it defaults to claude-3-haiku-20240307; if
// config.Timeout is zero, it defaults to 30 seconds.
func NewAnthropicClient(config ClientConfig, templates *Templates) *AnthropicClient {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &AnthropicClient{
		apiKey:    apiKey,
		model:     model,
		timeout:   timeout,
		templates: templates,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// InferTags proposes tags, a temperature, and a complexity label via the
// tagger prompt template.
func (c *AnthropicClient) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	rendered, err := c.templates.RenderTagger(prompt, recentHistory, maxTags)
	if err != nil {
		return nil, err
	}
	response, err := c.sendRequest(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("inferring tags: %w", err)
	}
	return parseTagInference(response)
}

// Reflect performs the combined extraction-and-evaluation pass via the
// reflection prompt template.
func (c *AnthropicClient) Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error) {
	rendered, err := c.templates.RenderReflection(transcript, playbook, 0.80)
	if err != nil {
		return nil, err
	}
	response, err := c.sendRequest(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("reflecting: %w", err)
	}
	return parseReflectionResult(response)
}

// MigrateToWhenDo proposes a when/do split via the migration prompt
// template.
func (c *AnthropicClient) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	rendered, err := c.templates.RenderMigration(text)
	if err != nil {
		return nil, err
	}
	response, err := c.sendRequest(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("migrating to when/do: %w", err)
	}
	return parseMigrationResult(response)
}

// Available returns true if the API key is present.
func (c *AnthropicClient) Available() bool {
	return c.apiKey != ""
}

func (c *AnthropicClient) sendRequest(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("anthropic client not available: missing API key")
	}

	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}

	if apiResp.Error != nil {
		return "", fmt.Errorf("API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}
