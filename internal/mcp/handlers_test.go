package mcp

import (
	"context"
	"path/filepath"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/playbookhq/engine/internal/config"
	"github.com/playbookhq/engine/internal/llm"
	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/reflector"
	"github.com/playbookhq/engine/internal/store"
	"github.com/playbookhq/engine/internal/triggers"
)

func newTestServer(t *testing.T, client llm.Client) *Server {
	t.Helper()
	dir := t.TempDir()
	storage := store.New(filepath.Join(dir, "playbook.json"))
	tmpl, err := llm.LoadTemplates("")
	if err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	cfg := config.Default()
	refl := reflector.New(client)
	handlers := triggers.New(cfg, storage, client, tmpl, refl, triggers.WithTempDir(t.TempDir()))

	srv, err := NewServer(&Config{Name: "test", Version: "v0"}, client, handlers)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func TestHandleInferTags_ReturnsGatewayResult(t *testing.T) {
	client := llm.NewFake()
	client.TagInference = &models.TagInference{
		Tags:        []string{"payment", "retry"},
		Temperature: 0.3,
		Complexity:  "moderate",
	}
	srv := newTestServer(t, client)

	_, out, err := srv.handleInferTags(context.Background(), &sdk.CallToolRequest{}, InferTagsInput{
		Prompt: "payment gateway keeps failing on retry",
	})
	if err != nil {
		t.Fatalf("handleInferTags: %v", err)
	}
	if len(out.Tags) != 2 || out.Tags[0] != "payment" {
		t.Errorf("expected the fake client's tags to pass through, got %v", out.Tags)
	}
	if out.Complexity != "moderate" {
		t.Errorf("expected complexity to pass through, got %q", out.Complexity)
	}
}

func TestHandleInferTags_PropagatesClientError(t *testing.T) {
	client := llm.NewFake()
	client.InferErr = context.DeadlineExceeded
	srv := newTestServer(t, client)

	_, _, err := srv.handleInferTags(context.Background(), &sdk.CallToolRequest{}, InferTagsInput{Prompt: "x"})
	if err == nil {
		t.Fatal("expected an error from a failing client")
	}
}

func TestHandleReflect_RequiresSessionID(t *testing.T) {
	srv := newTestServer(t, llm.NewFake())

	_, _, err := srv.handleReflect(context.Background(), &sdk.CallToolRequest{}, ReflectInput{})
	if err == nil {
		t.Fatal("expected an error when session_id is empty")
	}
}

func TestHandleReflect_AdmitsNewKPTAndReportsCounts(t *testing.T) {
	client := llm.NewFake()
	client.ReflectResult = &models.ReflectionResult{
		NewKPTs: []models.NewKPT{{Text: "k1", When: "a", Do: "b", Tags: []string{"x"}}},
	}
	srv := newTestServer(t, client)

	_, out, err := srv.handleReflect(context.Background(), &sdk.CallToolRequest{}, ReflectInput{
		SessionID:  "session-1",
		Transcript: []TranscriptTurn{{Role: "user", Text: "hello"}},
	})
	if err != nil {
		t.Fatalf("handleReflect: %v", err)
	}
	if !out.Applied {
		t.Error("expected Applied to be true on a successful reflection")
	}
	if out.NewKPTs != 1 {
		t.Errorf("expected one new KPT reported, got %d", out.NewKPTs)
	}
}
