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
	openAIEndpoint     = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIClient implements Client using the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey    string
	model     string
	timeout   time.Duration
	client    *http.Client
	templates *Templates
}

// NewOpenAIClient creates a new OpenAIClient. If config.APIKey is empty, it
// falls back to the OPENAI_API_KEY environment variable; if config.Model is
// empty, it defaults to gpt-4o-mini.
func NewOpenAIClient(config ClientConfig, templates *Templates) *OpenAIClient {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	model := config.Model
	if model == "" {
		model = openAIDefaultModel
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		apiKey:    apiKey,
		model:     model,
		timeout:   timeout,
		templates: templates,
		client:    &http.Client{Timeout: timeout},
	}
}

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// InferTags proposes tags, a temperature, and a complexity label via the
// tagger prompt template.
func (c *OpenAIClient) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	rendered, err := c.templates.RenderTagger(prompt, recentHistory, maxTags)
	if err != nil {
		return nil, err
	}
	response, err := c.callAPI(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("inferring tags: %w", err)
	}
	return parseTagInference(response)
}

// Reflect performs the combined extraction-and-evaluation pass via the
// reflection prompt template.
func (c *OpenAIClient) Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error) {
	rendered, err := c.templates.RenderReflection(transcript, playbook, 0.80)
	if err != nil {
		return nil, err
	}
	response, err := c.callAPI(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("reflecting: %w", err)
	}
	return parseReflectionResult(response)
}

// MigrateToWhenDo proposes a when/do split via the migration prompt
// template.
func (c *OpenAIClient) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	rendered, err := c.templates.RenderMigration(text)
	if err != nil {
		return nil, err
	}
	response, err := c.callAPI(ctx, rendered)
	if err != nil {
		return nil, fmt.Errorf("migrating to when/do: %w", err)
	}
	return parseMigrationResult(response)
}

// Available returns true if the OpenAI API key is present.
func (c *OpenAIClient) Available() bool {
	return c.apiKey != ""
}

func (c *OpenAIClient) callAPI(ctx context.Context, prompt string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("openai client not available: missing API key")
	}

	reqBody := openAIChatRequest{
		Model: c.model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIEndpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("parsing API response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in API response")
	}
	return chatResp.Choices[0].Message.Content, nil
}
