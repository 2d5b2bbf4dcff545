package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/perrors"
)

type stubClient struct {
	available   bool
	inferErrs   []error
	inferCalls  int
	inferResult *models.TagInference
}

func (s *stubClient) InferTags(ctx context.Context, prompt string, recentHistory []models.TranscriptTurn, maxTags int) (*models.TagInference, error) {
	i := s.inferCalls
	s.inferCalls++
	if i < len(s.inferErrs) && s.inferErrs[i] != nil {
		return nil, s.inferErrs[i]
	}
	return s.inferResult, nil
}

func (s *stubClient) Reflect(ctx context.Context, transcript []models.TranscriptTurn, playbook *models.Playbook) (*models.ReflectionResult, error) {
	return nil, nil
}

func (s *stubClient) MigrateToWhenDo(ctx context.Context, text string) (*models.MigrationResult, error) {
	return nil, nil
}

func (s *stubClient) Available() bool { return s.available }

func TestGateway_RetriesTransportErrors(t *testing.T) {
	client := &stubClient{
		inferErrs:   []error{errors.New("connection reset"), errors.New("connection reset"), nil},
		inferResult: &models.TagInference{Tags: []string{"payment"}},
	}
	g := NewGateway(client, ClientConfig{Provider: "test"}, WithRetries(3), WithBackoff(time.Millisecond))

	result, err := g.InferTags(context.Background(), "prompt", nil, 8)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if client.inferCalls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", client.inferCalls)
	}
	if len(result.Tags) != 1 || result.Tags[0] != "payment" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestGateway_NeverRetriesSchemaErrors(t *testing.T) {
	client := &stubClient{
		inferErrs: []error{fmt.Errorf("%w: bad json", perrors.ErrLLMSchema)},
	}
	g := NewGateway(client, ClientConfig{Provider: "test"}, WithRetries(3), WithBackoff(time.Millisecond))

	_, err := g.InferTags(context.Background(), "prompt", nil, 8)
	if !errors.Is(err, perrors.ErrLLMSchema) {
		t.Fatalf("expected ErrLLMSchema, got %v", err)
	}
	if client.inferCalls != 1 {
		t.Errorf("schema errors must never be retried, got %d calls", client.inferCalls)
	}
}

func TestGateway_ExhaustsRetriesAndWrapsTransportError(t *testing.T) {
	client := &stubClient{
		inferErrs: []error{
			errors.New("timeout"), errors.New("timeout"), errors.New("timeout"),
		},
	}
	g := NewGateway(client, ClientConfig{Provider: "test"}, WithRetries(2), WithBackoff(time.Millisecond))

	_, err := g.InferTags(context.Background(), "prompt", nil, 8)
	if !errors.Is(err, perrors.ErrLLMTransport) {
		t.Fatalf("expected ErrLLMTransport after exhausting retries, got %v", err)
	}
	if client.inferCalls != 3 {
		t.Errorf("expected retries+1=3 calls, got %d", client.inferCalls)
	}
}

func TestGateway_RespectsContextCancellation(t *testing.T) {
	client := &stubClient{inferErrs: []error{errors.New("transient")}}
	g := NewGateway(client, ClientConfig{Provider: "test"}, WithRetries(5), WithBackoff(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.InferTags(ctx, "prompt", nil, 8)
	if !errors.Is(err, perrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout on a pre-canceled context, got %v", err)
	}
}

func TestGateway_AvailableDelegatesToClient(t *testing.T) {
	g := NewGateway(&stubClient{available: true}, ClientConfig{})
	if !g.Available() {
		t.Error("expected Available() to delegate to the underlying client")
	}
}

func TestGateway_StringRedactsAPIKey(t *testing.T) {
	g := NewGateway(&stubClient{}, ClientConfig{Provider: "openai", APIKey: "sk-1234567890abcdef"})
	s := g.String()
	if s == "" {
		t.Fatal("expected non-empty String()")
	}
	if contains(s, "1234567890abcdef") {
		t.Errorf("String() leaked the raw API key: %s", s)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
