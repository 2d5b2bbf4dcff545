// Package triggers implements the three thin entry points — prompt
// submission, session end, and pre-compaction — that orchestrate Selector
// or Reflector around Storage under the playbook's advisory file lock.
// Every handler swallows its own errors at the boundary: a failure here
// degrades to "no context added" or "no update", never a loud failure
// visible to the end user.
package triggers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/playbookhq/engine/internal/config"
	"github.com/playbookhq/engine/internal/constants"
	"github.com/playbookhq/engine/internal/llm"
	"github.com/playbookhq/engine/internal/lockfile"
	"github.com/playbookhq/engine/internal/logging"
	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/perrors"
	"github.com/playbookhq/engine/internal/reflector"
	"github.com/playbookhq/engine/internal/selector"
	"github.com/playbookhq/engine/internal/store"
	"github.com/playbookhq/engine/internal/store/index"
)

// Handlers wires Storage, the LLM gateway, Selector, and Reflector into
// the three handlers a host hook dispatcher calls.
type Handlers struct {
	cfg      *config.Config
	storage  *store.Storage
	client   llm.Client
	tmpl     *llm.Templates
	sel      *selector.Selector
	refl     *reflector.Reflector
	idx      *index.Index
	log      *slog.Logger
	decision *logging.DecisionLogger
	lockPath string
	tempDir  string
}

// Option configures a Handlers.
type Option func(*Handlers)

// WithIndex installs a sqlite candidate-filter accelerator, rebuilt after
// every successful reflection store (loads do not rebuild it). Optional —
// Select produces identical output without one.
func WithIndex(idx *index.Index) Option {
	return func(h *Handlers) { h.idx = idx }
}

// WithLogger overrides the operator-facing logger (default: discarded).
func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.log = l }
}

// WithDecisionLogger overrides the structured decision trace sink
// (default: nil, a no-op).
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(h *Handlers) { h.decision = dl }
}

// WithTempDir overrides the directory the onPreCompact idempotency marker
// is created under (default: os.TempDir()).
func WithTempDir(dir string) Option {
	return func(h *Handlers) { h.tempDir = dir }
}

// New creates a Handlers backed by storage, client, and refl, configured
// by cfg. The advisory lock file lives beside the playbook.
func New(cfg *config.Config, storage *store.Storage, client llm.Client, tmpl *llm.Templates, refl *reflector.Reflector, opts ...Option) *Handlers {
	h := &Handlers{
		cfg:      cfg,
		storage:  storage,
		client:   client,
		tmpl:     tmpl,
		sel:      selector.New(),
		refl:     refl,
		log:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})),
		lockPath: filepath.Join(filepath.Dir(storage.Path()), "playbook.lock"),
		tempDir:  os.TempDir(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func withDeadline(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// OnPromptSubmit implements spec §4.6: load -> inferTags -> select -> emit
// injection payload. It never writes the playbook, and it never returns
// an error to the caller; any failure degrades to an empty payload.
func (h *Handlers) OnPromptSubmit(ctx context.Context, prompt string, history []models.TranscriptTurn) string {
	ctx, cancel := withDeadline(ctx, constants.DefaultPromptSubmitTimeoutSeconds)
	defer cancel()

	pb, err := h.loadShared(ctx)
	if err != nil {
		h.logFailure("prompt_submit", "load", err)
		return ""
	}

	inference, err := h.client.InferTags(ctx, prompt, history, constants.DefaultMaxTags)
	if err != nil {
		h.logFailure("prompt_submit", "infer_tags", err)
		return ""
	}

	// The index (if any) is seeded once at process start and refreshed
	// after every successful reflectAndStore; it is never rebuilt here,
	// since onPromptSubmit holds only a shared lock and must stay pure.
	selected := h.sel.Select(prompt, inference.Tags, inference.Temperature, pb, selector.Options{
		Limit:                       h.cfg.DefaultSelectionLimit,
		AdaptiveTemperatureOverride: h.cfg.AdaptiveTemperatureOverride,
		Index:                       h.idx,
		Context:                     ctx,
	})

	h.decision.Log(map[string]any{
		"event":       "select",
		"prompt_tags": inference.Tags,
		"temperature": inference.Temperature,
		"selected":    len(selected),
	})

	if len(selected) == 0 {
		return ""
	}

	payload, err := h.tmpl.RenderInjection(selected)
	if err != nil {
		h.logFailure("prompt_submit", "render_injection", err)
		return ""
	}
	return payload
}

// OnSessionEnd implements spec §4.6: acquire lock -> load -> reflect ->
// store -> release, a no-op if update_on_exit is disabled. The returned
// error is for diagnostics and tests only — per the failure policy, the
// CLI boundary always discards it and exits 0.
func (h *Handlers) OnSessionEnd(ctx context.Context, transcript []models.TranscriptTurn, sessionID string) error {
	if !h.cfg.UpdateOnExit {
		return nil
	}
	ctx, cancel := withDeadline(ctx, constants.DefaultReflectionTimeoutSeconds)
	defer cancel()
	_, err := h.reflectAndStore(ctx, transcript, sessionID)
	if err != nil {
		h.logFailure("session_end", "reflect", err)
	}
	return err
}

// ReflectSummary reports what a reflection pass changed, for callers (the
// MCP server's playbook_reflect tool) that need more than pass/fail.
type ReflectSummary struct {
	NewKPTs    int `json:"new_kpts"`
	Deltas     int `json:"deltas"`
	Merges     int `json:"merges"`
	Promotions int `json:"promotions"`
	TotalCount int `json:"total_count"`
}

// Reflect runs the same extract -> rebase -> apply -> store pipeline as
// OnSessionEnd, but unconditionally (ignoring update_on_exit) and
// returning a summary of what changed. It exists for callers that drive
// reflection directly rather than through a hook, such as the MCP server.
func (h *Handlers) Reflect(ctx context.Context, transcript []models.TranscriptTurn, sessionID string) (*ReflectSummary, error) {
	ctx, cancel := withDeadline(ctx, constants.DefaultReflectionTimeoutSeconds)
	defer cancel()
	summary, err := h.reflectAndStore(ctx, transcript, sessionID)
	if err != nil {
		h.logFailure("mcp_reflect", "reflect", err)
		return nil, err
	}
	return summary, nil
}

// OnPreCompact implements spec §4.6: same sequence as OnSessionEnd, gated
// by update_on_clear, with a TOCTOU-safe idempotency marker so a duplicate
// pre-compact invocation against an equivalent transcript within the same
// process lifetime skips a redundant LLM call. The marker is an
// optimization only — Reflector's validate-or-rollback step is what
// actually guarantees idempotence.
func (h *Handlers) OnPreCompact(ctx context.Context, transcript []models.TranscriptTurn, sessionID string) error {
	if !h.cfg.UpdateOnClear {
		return nil
	}
	ctx, cancel := withDeadline(ctx, constants.DefaultReflectionTimeoutSeconds)
	defer cancel()

	pb, err := h.loadShared(ctx)
	if err != nil {
		h.logFailure("pre_compact", "load", err)
		return err
	}

	marker := filepath.Join(h.tempDir, preCompactMarkerName(sessionID, len(transcript), pb.Len()))
	if mkErr := os.Mkdir(marker, 0o700); mkErr != nil {
		return nil // already handled this equivalent invocation
	}

	_, err = h.reflectAndStore(ctx, transcript, sessionID)
	if err != nil {
		h.logFailure("pre_compact", "reflect", err)
	}
	return err
}

func preCompactMarkerName(sessionID string, transcriptLen, lastKPTCount int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", sessionID, transcriptLen, lastKPTCount)))
	return "playbook-precompact-" + hex.EncodeToString(sum[:8])
}

// reflectAndStore implements the concurrency design's rebase pattern:
// load under the exclusive lock, release, issue the LLM call outside lock
// scope, re-acquire, re-read, and replay the extracted result onto
// whichever playbook is now live. If the playbook mutated between the two
// reads, the replay is attempted against the newer state; if that replay
// still fails invariant validation, the reflection aborts with
// ConcurrentUpdate rather than ReflectionRejected, since the failure may
// be an artifact of the rebase rather than the reflection itself.
func (h *Handlers) reflectAndStore(ctx context.Context, transcript []models.TranscriptTurn, sessionID string) (*ReflectSummary, error) {
	lock, err := lockfile.AcquireExclusive(h.lockPath)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	pb, err := h.storage.Load(ctx)
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("loading playbook: %w", err)
	}
	h.migrateLegacyKPTs(ctx, pb)
	fingerprintBefore, err := h.storage.Fingerprint()
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("fingerprinting playbook: %w", err)
	}
	lock.Release()

	result, err := h.refl.Extract(ctx, transcript, pb)
	if err != nil {
		return nil, fmt.Errorf("extracting reflection: %w", err)
	}

	lock, err = lockfile.AcquireExclusive(h.lockPath)
	if err != nil {
		return nil, fmt.Errorf("re-acquiring lock: %w", err)
	}
	defer lock.Release()

	fingerprintAfter, err := h.storage.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("fingerprinting playbook: %w", err)
	}

	base := pb
	if fingerprintAfter != fingerprintBefore {
		base, err = h.storage.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("re-loading playbook: %w", err)
		}
		h.migrateLegacyKPTs(ctx, base)
	}

	updated, applyErr := h.refl.ApplyResult(result, base, sessionID)
	if applyErr != nil {
		if fingerprintAfter != fingerprintBefore {
			return nil, fmt.Errorf("%w: %v", perrors.ErrConcurrentUpdate, applyErr)
		}
		return nil, applyErr
	}

	if err := h.storage.Store(ctx, updated); err != nil {
		return nil, fmt.Errorf("storing playbook: %w", err)
	}
	if h.idx != nil {
		_ = h.idx.Rebuild(ctx, updated)
	}

	summary := &ReflectSummary{
		NewKPTs:    len(result.NewKPTs),
		Deltas:     len(result.Deltas),
		Merges:     len(result.Merges),
		Promotions: len(result.Promotions),
		TotalCount: updated.Len(),
	}

	h.decision.Log(map[string]any{
		"event":       "reflect",
		"session_id":  sessionID,
		"rebased":     fingerprintAfter != fingerprintBefore,
		"new_kpts":    summary.NewKPTs,
		"deltas":      summary.Deltas,
		"merges":      summary.Merges,
		"promotions":  summary.Promotions,
		"total_count": summary.TotalCount,
	})
	return summary, nil
}

// loadShared loads the playbook under a shared lock, held only for the
// duration of the read; selection itself is pure and needs no lock. The
// legacy migration it applies is view-only here — OnPromptSubmit never
// writes the playbook, so a confident up-conversion is visible to this
// call's selection but not persisted until a reflection writes it back.
func (h *Handlers) loadShared(ctx context.Context) (*models.Playbook, error) {
	lock, err := lockfile.AcquireShared(h.lockPath)
	if err != nil {
		return nil, fmt.Errorf("acquiring shared lock: %w", err)
	}
	defer lock.Release()
	pb, err := h.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	h.migrateLegacyKPTs(ctx, pb)
	return pb, nil
}

// migrateLegacyKPTs implements spec §4.3's lazy up-conversion: every KPT
// still in the legacy single-text shape is offered to
// LLMGateway.MigrateToWhenDo, and replaced with the proposed when/do
// split only if the model's reported confidence clears
// constants.DefaultMigrationConfidenceThreshold; otherwise the legacy
// shape is left untouched. A client error is swallowed — migration is a
// convenience, never a reason to fail a load.
func (h *Handlers) migrateLegacyKPTs(ctx context.Context, pb *models.Playbook) {
	migrateRegion := func(region []models.KPT) {
		for i := range region {
			k := &region[i]
			if k.HasStructuredBody() || k.Text == "" {
				continue
			}
			result, err := h.client.MigrateToWhenDo(ctx, k.Text)
			if err != nil || result == nil {
				continue
			}
			if result.Confidence >= constants.DefaultMigrationConfidenceThreshold {
				k.When = result.When
				k.Do = result.Do
				k.Text = ""
			}
		}
	}
	migrateRegion(pb.Stable)
	migrateRegion(pb.Pending)
}

func (h *Handlers) logFailure(handlerName, step string, err error) {
	kind := "unknown"
	switch {
	case errors.Is(err, perrors.ErrCorruptPlaybook):
		kind = "corrupt_playbook"
	case errors.Is(err, perrors.ErrLLMTransport):
		kind = "llm_transport"
	case errors.Is(err, perrors.ErrLLMSchema):
		kind = "llm_schema"
	case errors.Is(err, perrors.ErrConcurrentUpdate):
		kind = "concurrent_update"
	case errors.Is(err, perrors.ErrTimeout):
		kind = "timeout"
	case errors.Is(err, perrors.ErrReflectionRejected):
		kind = "reflection_rejected"
	case errors.Is(err, perrors.ErrInvariantViolation):
		kind = "invariant_violation"
	}
	h.log.Warn("trigger handler degraded to no-op", "handler", handlerName, "step", step, "kind", kind, "error", err)
	h.decision.Log(map[string]any{
		"event":   "failure",
		"handler": handlerName,
		"step":    step,
		"kind":    kind,
		"error":   err.Error(),
	})
}
