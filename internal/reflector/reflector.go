// Package reflector implements the 11-step extract/evaluate/merge/prune
// pipeline that turns a conversation transcript and the current playbook
// into the next playbook: the only component besides Storage that ever
// produces a new Playbook value.
package reflector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/playbookhq/engine/internal/constants"
	"github.com/playbookhq/engine/internal/llm"
	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/perrors"
	"github.com/playbookhq/engine/internal/sanitize"
	"github.com/playbookhq/engine/internal/similarity"
	"github.com/playbookhq/engine/internal/store"
	"github.com/playbookhq/engine/internal/tagging"
)

// Reflector turns a transcript and the current playbook into the next
// playbook. It holds no playbook state between calls; each Apply is
// self-contained around a single LLMGateway.Reflect round-trip.
type Reflector struct {
	client         llm.Client
	estimator      similarity.Estimator
	dict           *tagging.Dictionary
	mergeThreshold float64
	vetoThreshold  float64
	pruneThreshold int
	maxKPTs        int
}

// Option configures a Reflector.
type Option func(*Reflector)

// WithEstimator installs an optional local similarity cross-check for
// step 4 (apply merges). Nil (the default) means merges rely solely on
// the LLM-reported similarity.
func WithEstimator(e similarity.Estimator) Option {
	return func(r *Reflector) { r.estimator = e }
}

// WithMergeThreshold overrides the minimum LLM-reported similarity
// required to merge two KPTs (default constants.DefaultMergeThreshold).
func WithMergeThreshold(t float64) Option {
	return func(r *Reflector) { r.mergeThreshold = t }
}

// WithVetoThreshold overrides the minimum local-estimator score an
// LLM-proposed merge must also clear (default
// constants.DefaultMergeVetoThreshold). Irrelevant without WithEstimator.
func WithVetoThreshold(t float64) Option {
	return func(r *Reflector) { r.vetoThreshold = t }
}

// WithPruneThreshold overrides the score at or below which a KPT is
// pruned (default constants.DefaultPruneThreshold).
func WithPruneThreshold(t int) Option {
	return func(r *Reflector) { r.pruneThreshold = t }
}

// WithMaxKPTs overrides the maximum total playbook size (default
// constants.DefaultMaxKPTs).
func WithMaxKPTs(n int) Option {
	return func(r *Reflector) { r.maxKPTs = n }
}

// New creates a Reflector backed by client (typically an *llm.Gateway).
func New(client llm.Client, opts ...Option) *Reflector {
	r := &Reflector{
		client:         client,
		dict:           tagging.NewDictionary(),
		mergeThreshold: constants.DefaultMergeThreshold,
		vetoThreshold:  constants.DefaultMergeVetoThreshold,
		pruneThreshold: constants.DefaultPruneThreshold,
		maxKPTs:        constants.DefaultMaxKPTs,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Apply runs the full extract/evaluate/merge/prune/renumber pipeline and
// returns the superseding playbook. On any failure after the LLM call —
// most notably a rejected invariant at the final validation step — it
// returns pb unchanged alongside the error; callers must not store a
// non-nil error's returned playbook.
//
// Apply is a convenience composition of Extract and ApplyResult. Callers
// that must issue the LLM call outside a lock scope and replay the result
// against a freshly re-read playbook (the rebase pattern in the
// concurrency design) should call Extract and ApplyResult separately.
func (r *Reflector) Apply(ctx context.Context, transcript []models.TranscriptTurn, pb *models.Playbook, sourceSessionID string) (*models.Playbook, error) {
	result, err := r.Extract(ctx, transcript, pb)
	if err != nil {
		return pb, err
	}
	return r.ApplyResult(result, pb, sourceSessionID)
}

// Extract performs step 2 (the single combined extraction-and-evaluation
// LLM round-trip) and returns its raw result, uninterpreted against any
// particular playbook state yet.
func (r *Reflector) Extract(ctx context.Context, transcript []models.TranscriptTurn, pb *models.Playbook) (*models.ReflectionResult, error) {
	result, err := r.client.Reflect(ctx, transcript, pb)
	if err != nil {
		return nil, fmt.Errorf("reflecting on transcript: %w", err)
	}
	return result, nil
}

// ApplyResult runs steps 3-11 (apply deltas, merges, admissions,
// promotions, prune, evict, reorder, renumber, validate) of an
// already-extracted result against pb and returns the superseding
// playbook. On any failure — most notably a rejected invariant at the
// final validation step — it returns pb unchanged alongside the error;
// callers must not store a non-nil error's returned playbook.
func (r *Reflector) ApplyResult(result *models.ReflectionResult, pb *models.Playbook, sourceSessionID string) (*models.Playbook, error) {
	working := pb.Clone()
	now := time.Now().UTC()

	applyDeltas(working, result.Deltas, now)
	r.applyMerges(working, result.Merges)
	r.admitNewKPTs(working, result.NewKPTs, sourceSessionID, now)
	promote(working, result.Promotions)
	pruneLowScoring(working, r.pruneThreshold)
	evictToMaxSize(working, r.maxKPTs)
	reorder(working)
	renumber(working)

	if err := store.Validate(working); err != nil {
		return pb, fmt.Errorf("%w: %v", perrors.ErrReflectionRejected, err)
	}

	return working, nil
}

// applyDeltas implements step 3: apply score/tag/text adjustments to
// existing KPTs and clamp numeric ranges. Deltas naming an unknown KPT
// are ignored — the LLM hallucinating a name is not grounds to fail the
// whole reflection.
func applyDeltas(pb *models.Playbook, deltas []models.Delta, now time.Time) {
	for _, d := range deltas {
		k := pb.Find(d.Name)
		if k == nil {
			continue
		}
		k.Score += d.ScoreDelta
		if len(d.TagAdditions) > 0 {
			k.Tags = tagging.Normalize(append(append([]string(nil), k.Tags...), d.TagAdditions...))
		}
		if d.TextRewrite != "" {
			k.Text = sanitize.SanitizeBehaviorContent(d.TextRewrite)
			k.When, k.Do = "", ""
		}
		k.LastSeenAt = now
		store.Clamp(k)
	}
}

// applyMerges implements step 4. Proposed groups are processed in
// descending reported-similarity order so that when two groups claim the
// same member, the higher-similarity group wins (per spec). Each
// surviving member must additionally clear r.mergeThreshold and, if an
// estimator is configured, the local veto check.
func (r *Reflector) applyMerges(pb *models.Playbook, merges []models.MergeGroup) {
	sorted := append([]models.MergeGroup(nil), merges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Similarity != sorted[j].Similarity {
			return sorted[i].Similarity > sorted[j].Similarity
		}
		return sorted[i].Survivor < sorted[j].Survivor
	})

	claimed := make(map[string]bool)
	for _, group := range sorted {
		if group.Similarity < r.mergeThreshold {
			continue
		}
		if claimed[group.Survivor] {
			continue
		}
		survivor := pb.Find(group.Survivor)
		if survivor == nil {
			continue
		}

		var absorbed []*models.KPT
		for _, name := range group.Absorbed {
			if name == group.Survivor || claimed[name] {
				continue
			}
			member := pb.Find(name)
			if member == nil {
				continue
			}
			if r.estimator != nil && r.estimator.Similarity(survivor.Body(), member.Body()) < r.vetoThreshold {
				continue
			}
			absorbed = append(absorbed, member)
		}
		if len(absorbed) == 0 {
			continue
		}

		mergeInto(survivor, absorbed)
		for _, member := range absorbed {
			claimed[member.Name] = true
		}
	}

	if len(claimed) > 0 {
		pb.Stable = removeNamed(pb.Stable, claimed)
		pb.Pending = removeNamed(pb.Pending, claimed)
	}
}

// mergeInto combines absorbed into survivor in place: summed score,
// union tag set, and the numeric ratings of whichever member (including
// survivor itself) has the highest score.
func mergeInto(survivor *models.KPT, absorbed []*models.KPT) {
	winner := survivor
	total := survivor.Score
	tags := append([]string(nil), survivor.Tags...)

	for _, member := range absorbed {
		total += member.Score
		tags = append(tags, member.Tags...)
		if member.Score > winner.Score {
			winner = member
		}
	}

	survivor.Score = total
	survivor.Tags = tagging.Normalize(tags)
	survivor.EffectRating = winner.EffectRating
	survivor.RiskLevel = winner.RiskLevel
	survivor.InnovationLevel = winner.InnovationLevel
	store.Clamp(survivor)
}

func removeNamed(kpts []models.KPT, claimed map[string]bool) []models.KPT {
	out := kpts[:0]
	for _, k := range kpts {
		if !claimed[k.Name] {
			out = append(out, k)
		}
	}
	return out
}

// admitNewKPTs implements step 5: new KPTs enter as pending, with their
// text sanitized against stored prompt injection (it originates from the
// model's reply) and LLM-omitted numeric attributes defaulted. A KPT
// whose tags normalize to empty is never admitted tagless: it is
// synthesized from its own body via the keyword dictionary, falling back
// to a single generic tag, so an untagged lesson is never rejected by
// store.Validate at the final invariant check.
func (r *Reflector) admitNewKPTs(pb *models.Playbook, proposed []models.NewKPT, sourceSessionID string, now time.Time) {
	for _, n := range proposed {
		k := models.KPT{
			Text:            sanitize.SanitizeBehaviorContent(n.Text),
			When:            sanitize.SanitizeBehaviorContent(n.When),
			Do:              sanitize.SanitizeBehaviorContent(n.Do),
			Tags:            tagging.Normalize(n.Tags),
			Pending:         true,
			CreatedAt:       now,
			LastSeenAt:      now,
			SourceSessionID: sourceSessionID,
			EffectRating:    orDefault(n.EffectRating, constants.DefaultNewKPTEffectRating),
			RiskLevel:       orDefault(n.RiskLevel, constants.DefaultNewKPTRiskLevel),
			InnovationLevel: orDefault(n.InnovationLevel, constants.DefaultNewKPTInnovationLevel),
		}
		if len(k.Tags) == 0 {
			k.Tags = r.synthesizeTags(k.Body())
		}
		pb.Pending = append(pb.Pending, k)
	}
}

// synthesizeTags implements invariant 5's tag-synthesis mandate: a KPT
// the extractor left tagless must still be admitted, not rejected. It
// tries the keyword dictionary against the KPT's own body first, falling
// back to a single generic tag if even that finds nothing.
func (r *Reflector) synthesizeTags(body string) []string {
	if tags := tagging.ExtractTags(body, r.dict); len(tags) > 0 {
		return tags
	}
	return []string{"general"}
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// promote implements step 6: move named pending KPTs into the stable
// region, in the order they were promoted.
func promote(pb *models.Playbook, names []string) {
	for _, name := range names {
		idx := -1
		for i, k := range pb.Pending {
			if k.Name == name {
				idx = i
				break
			}
		}
		if idx == -1 {
			continue
		}
		k := pb.Pending[idx]
		k.Pending = false
		pb.Pending = append(pb.Pending[:idx], pb.Pending[idx+1:]...)
		pb.Stable = append(pb.Stable, k)
	}
}

// pruneLowScoring implements step 7: drop any KPT at or below threshold.
func pruneLowScoring(pb *models.Playbook, threshold int) {
	pb.Stable = filterAbove(pb.Stable, threshold)
	pb.Pending = filterAbove(pb.Pending, threshold)
}

func filterAbove(kpts []models.KPT, threshold int) []models.KPT {
	out := kpts[:0]
	for _, k := range kpts {
		if k.Score > threshold {
			out = append(out, k)
		}
	}
	return out
}

// evictToMaxSize implements step 8: evict lowest-scored stable KPTs
// (ties broken oldest-first, then by name) until the total playbook size
// is at most maxKPTs.
func evictToMaxSize(pb *models.Playbook, maxKPTs int) {
	for len(pb.Stable)+len(pb.Pending) > maxKPTs && len(pb.Stable) > 0 {
		worst := 0
		for i := 1; i < len(pb.Stable); i++ {
			if isWorse(pb.Stable[i], pb.Stable[worst]) {
				worst = i
			}
		}
		pb.Stable = append(pb.Stable[:worst], pb.Stable[worst+1:]...)
	}
}

func isWorse(a, b models.KPT) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Name < b.Name
}

// reorder implements step 9: stable region by descending score then
// name, pending region untouched (insertion order).
func reorder(pb *models.Playbook) {
	sort.SliceStable(pb.Stable, func(i, j int) bool {
		if pb.Stable[i].Score != pb.Stable[j].Score {
			return pb.Stable[i].Score > pb.Stable[j].Score
		}
		return pb.Stable[i].Name < pb.Stable[j].Name
	})
}

// renumber implements step 10: assign the dense kpt_001..kpt_N sequence
// to the final stable-then-pending order.
func renumber(pb *models.Playbook) {
	n := 1
	for i := range pb.Stable {
		pb.Stable[i].Name = fmt.Sprintf("kpt_%03d", n)
		n++
	}
	for i := range pb.Pending {
		pb.Pending[i].Name = fmt.Sprintf("kpt_%03d", n)
		n++
	}
}
