package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/playbookhq/engine/internal/config"
	"github.com/playbookhq/engine/internal/llm"
	"github.com/playbookhq/engine/internal/logging"
	"github.com/playbookhq/engine/internal/reflector"
	"github.com/playbookhq/engine/internal/similarity"
	"github.com/playbookhq/engine/internal/store"
	"github.com/playbookhq/engine/internal/store/index"
	"github.com/playbookhq/engine/internal/triggers"
)

// app bundles the wiring every hook subcommand needs: config, storage, and
// a ready TriggerHandlers. Operator commands (show, validate, backup,
// restore) use only cfg and storage.
type app struct {
	cfg      *config.Config
	storage  *store.Storage
	idx      *index.Index
	client   llm.Client
	handlers *triggers.Handlers
}

// diagnosticLevel translates Config.DiagnosticMode into the string level
// internal/logging expects: verbose ("debug") when enabled, quiet ("info")
// otherwise.
func diagnosticLevel(cfg *config.Config) string {
	if cfg.DiagnosticMode {
		return "debug"
	}
	return "info"
}

// newClient selects the LLM backend named by cfg.LLM.Provider, wrapped in
// an LLMGateway for retry/timeout/schema discipline. An empty or unknown
// provider falls back to the deterministic rule-based client.
func newClient(cfg *config.Config, tmpl *llm.Templates) llm.Client {
	clientCfg := llm.ClientConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	}

	var backend llm.Client
	switch cfg.LLM.Provider {
	case "anthropic":
		backend = llm.NewAnthropicClient(clientCfg, tmpl)
	case "openai":
		backend = llm.NewOpenAIClient(clientCfg, tmpl)
	default:
		backend = llm.NewFallbackClient()
	}

	return llm.NewGateway(backend, clientCfg, llm.WithRetries(cfg.LLM.Retries))
}

// buildApp loads configuration rooted at root and wires every component a
// hook subcommand or operator command might need. The sqlite candidate
// index is best-effort: if it fails to open, components proceed without it.
func buildApp(ctx context.Context, root string) (*app, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	storage := store.New(cfg.PlaybookPath, store.WithBackupKeep(cfg.BackupKeep))

	tmpl, err := llm.LoadTemplates("")
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	client := newClient(cfg, tmpl)
	reflOpts := []reflector.Option{
		reflector.WithMergeThreshold(cfg.MergeThreshold),
		reflector.WithPruneThreshold(cfg.PruneThreshold),
		reflector.WithMaxKPTs(cfg.MaxKPTs),
	}
	// The local embedding cross-check is opt-in: an Embedding estimator
	// that can't load a model would otherwise veto every proposed merge
	// (Similarity degrades to 0 on failure), so it's only wired in when a
	// model is actually reachable.
	if emb := similarity.NewEmbedding(similarity.EmbeddingConfig{
		LibPath:   cfg.EmbeddingLibPath,
		ModelPath: cfg.EmbeddingModelPath,
	}); emb.Available() {
		reflOpts = append(reflOpts, reflector.WithEstimator(emb))
	}
	refl := reflector.New(client, reflOpts...)

	idx, err := index.Open(ctx)
	if err != nil {
		idx = nil
	} else if pb, loadErr := storage.Load(ctx); loadErr == nil {
		_ = idx.Rebuild(ctx, pb)
	}

	level := diagnosticLevel(cfg)
	logger := logging.NewLogger(level, os.Stderr)
	decision := logging.NewDecisionLogger(filepath.Dir(cfg.PlaybookPath), level)

	opts := []triggers.Option{
		triggers.WithLogger(logger),
		triggers.WithDecisionLogger(decision),
	}
	if idx != nil {
		opts = append(opts, triggers.WithIndex(idx))
	}

	handlers := triggers.New(cfg, storage, client, tmpl, refl, opts...)

	return &app{cfg: cfg, storage: storage, idx: idx, client: client, handlers: handlers}, nil
}

func (a *app) Close() {
	if a.idx != nil {
		_ = a.idx.Close()
	}
}
