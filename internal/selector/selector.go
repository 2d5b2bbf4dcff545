// Package selector implements the hot-path algorithm that turns a prompt,
// its inferred tags, a temperature, and the current playbook into an
// ordered subset of KPTs to inject. It is pure: it never touches Storage
// or the LLM, and given identical inputs it always returns identical
// output (the determinism property the component design requires).
package selector

import (
	"context"
	"sort"
	"strings"

	"github.com/playbookhq/engine/internal/constants"
	"github.com/playbookhq/engine/internal/models"
	"github.com/playbookhq/engine/internal/store/index"
	"github.com/playbookhq/engine/internal/tagging"
)

// largePlaybookThreshold is the stable-region size above which
// candidateFilter prefers the sqlite index (when supplied) over an
// in-memory scan for its relaxation step.
const largePlaybookThreshold = 64

// Layer is the selection layer a candidate falls into based on its score.
type Layer int

const (
	Recommendation Layer = iota
	HighConfidence
)

// extremeRiskThresholdLowT and extremeRiskThresholdHighT are the risk-gate
// cutoffs for T≤0.4 and T>0.4 respectively.
const (
	extremeRiskThresholdLowT  = 0.8
	extremeRiskThresholdHighT = 0.6
)

// urgentKeywords, productionKeywords, and exploratoryKeywords back the
// optional adaptive temperature override.
var (
	urgentKeywords      = []string{"fix", "bug", "error", "urgent", "critical", "broken"}
	productionKeywords  = []string{"production", "deploy", "release", "customer"}
	exploratoryKeywords = []string{"explore", "learn", "research", "alternative", "innovative"}
)

// Selector holds no state; it is safe for concurrent use by multiple
// handler invocations, matching the pure-selection requirement in §4.4.
type Selector struct{}

// New creates a Selector.
func New() *Selector {
	return &Selector{}
}

// Options configures a single Select call.
type Options struct {
	// Limit is the maximum number of KPTs to return. Zero uses
	// constants.DefaultSelectionLimit.
	Limit int

	// AdaptiveTemperatureOverride, when true, applies the keyword heuristic
	// in AdjustTemperature before layer assignment.
	AdaptiveTemperatureOverride bool

	// Index, when non-nil and rebuilt against the current playbook,
	// accelerates candidateFilter's relaxation step on large playbooks by
	// querying sqlite instead of scanning pb.Stable in memory. Optional —
	// Select produces identical output with or without it.
	Index *index.Index

	// Context bounds Index queries. Ignored if Index is nil.
	Context context.Context
}

// candidate is a KPT plus the per-call scoring state the algorithm threads
// through steps 2-8.
type candidate struct {
	kpt        models.KPT
	base       float64
	layer      Layer
	weight     float64
	primaryTag string
}

// AdjustTemperature applies the optional keyword heuristic from §4.4: urgent
// cues clamp T≤0.3, production cues clamp T≤0.5, exploratory cues lift
// T≥0.7. Clamps are applied in that order, so an exploratory cue can
// raise T again after an urgent or production cue lowered it.
func AdjustTemperature(prompt string, t float64) float64 {
	lower := strings.ToLower(prompt)
	if containsAny(lower, urgentKeywords) && t > 0.3 {
		t = 0.3
	}
	if containsAny(lower, productionKeywords) && t > 0.5 {
		t = 0.5
	}
	if containsAny(lower, exploratoryKeywords) && t < 0.7 {
		t = 0.7
	}
	return t
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Select runs the full candidate-filter → weight → risk-gate → diversity ->
// sort → truncate pipeline described in §4.4 and returns the chosen KPTs in
// final, sorted order.
func (s *Selector) Select(prompt string, promptTags []string, temperature float64, pb *models.Playbook, opts Options) []models.KPT {
	limit := opts.Limit
	if limit <= 0 {
		limit = constants.DefaultSelectionLimit
	}

	t := temperature
	if opts.AdaptiveTemperatureOverride {
		t = AdjustTemperature(prompt, t)
	}

	tokens := tagging.Tokenize(prompt)

	pool := candidateFilter(pb, promptTags, tokens, limit, opts)

	candidates := make([]*candidate, 0, len(pool))
	for _, k := range pool {
		c := &candidate{kpt: k}
		c.base = baseWeight(promptTags, tokens, k)
		c.layer = layerOf(k)
		c.weight = finalWeight(c.base, c.layer, k, t)
		c.primaryTag = primaryTag(k)
		candidates = append(candidates, c)
	}

	candidates = riskGate(candidates, t)
	candidates = diversityFloor(candidates, limit)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].weight != candidates[j].weight {
			return candidates[i].weight > candidates[j].weight
		}
		if candidates[i].kpt.Score != candidates[j].kpt.Score {
			return candidates[i].kpt.Score > candidates[j].kpt.Score
		}
		return candidates[i].kpt.Name < candidates[j].kpt.Name
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]models.KPT, len(candidates))
	for i, c := range candidates {
		out[i] = c.kpt
	}
	return out
}

// candidateFilter implements step 1: drop pending KPTs, keep overlapping
// candidates, and relax to top-scored stable KPTs if too few remain.
func candidateFilter(pb *models.Playbook, promptTags, tokens []string, limit int, opts Options) []models.KPT {
	tagSet := make(map[string]bool, len(promptTags))
	for _, t := range promptTags {
		tagSet[t] = true
	}

	overlapSet := make(map[string]bool)
	var overlap []models.KPT
	var rest []models.KPT
	for _, k := range pb.Stable {
		if tagOverlap(tagSet, k.Tags) || tagging.Hits(tokens, k.Body()) >= 1 {
			overlap = append(overlap, k)
			overlapSet[k.Name] = true
		} else {
			rest = append(rest, k)
		}
	}

	working := max(limit*2, 15)
	if len(overlap) >= limit*2 || len(rest) == 0 {
		return overlap
	}

	if opts.Index != nil && len(pb.Stable) >= largePlaybookThreshold {
		if relaxed := relaxViaIndex(pb, opts, overlap, overlapSet, working); relaxed != nil {
			return relaxed
		}
		// Index unavailable or errored: degrade to the in-memory scan below.
	}

	// Relax: fill the working set with top-scored stable KPTs, irrespective
	// of overlap, without duplicating ones already included.
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Score != rest[j].Score {
			return rest[i].Score > rest[j].Score
		}
		return rest[i].Name < rest[j].Name
	})

	result := append([]models.KPT(nil), overlap...)
	for _, k := range rest {
		if len(result) >= working {
			break
		}
		result = append(result, k)
	}
	return result
}

// relaxViaIndex performs candidateFilter's relaxation step against
// opts.Index instead of scanning pb.Stable, for playbooks large enough
// that the scan is worth skipping. Returns nil if the index can't answer
// (not rebuilt, query error), signaling the caller to fall back.
func relaxViaIndex(pb *models.Playbook, opts Options, overlap []models.KPT, overlapSet map[string]bool, working int) []models.KPT {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	names, err := opts.Index.TopStableByScore(ctx, working)
	if err != nil {
		return nil
	}
	result := append([]models.KPT(nil), overlap...)
	for _, name := range names {
		if len(result) >= working {
			break
		}
		if overlapSet[name] {
			continue
		}
		if k := pb.Find(name); k != nil {
			result = append(result, *k)
			overlapSet[name] = true
		}
	}
	return result
}

func tagOverlap(promptTags map[string]bool, kptTags []string) bool {
	for _, t := range kptTags {
		if promptTags[t] {
			return true
		}
	}
	return false
}

// baseWeight implements step 2.
func baseWeight(promptTags, tokens []string, k models.KPT) float64 {
	return 10*tagging.Coverage(promptTags, k.Tags) +
		3*float64(clampInt(k.Score, -5, 20)) +
		5*float64(tagging.Hits(tokens, k.Body()))
}

// layerOf implements step 3.
func layerOf(k models.KPT) Layer {
	if k.Score >= constants.HighConfidenceThreshold {
		return HighConfidence
	}
	return Recommendation
}

// finalWeight implements steps 4-6: temperature multiplier, multi-dimensional
// tilt, and the final weight with its floor.
func finalWeight(base float64, layer Layer, k models.KPT, t float64) float64 {
	mu := temperatureMultiplier(layer, t)
	mu = tilt(mu, layer, k)
	if mu < 0.05 {
		mu = 0.05
	}
	return base * mu
}

// temperatureMultiplier implements step 4's piecewise formula, pinned
// exactly as specified (Open Question 2: this form is authoritative).
func temperatureMultiplier(layer Layer, t float64) float64 {
	if layer == HighConfidence {
		mu := 2.5 - 1.5*t
		if t <= 0.3 {
			mu += 0.5
		} else if t >= 0.7 {
			mu -= 0.3
		}
		return mu
	}
	mu := 2.0 * t
	if t <= 0.3 {
		mu *= 0.3
	} else if t >= 0.7 {
		mu += 0.5
	}
	return mu
}

// tilt implements step 5's multi-dimensional adjustment.
func tilt(mu float64, layer Layer, k models.KPT) float64 {
	if layer == HighConfidence {
		mu += 0.3 * k.EffectRating
		if k.RiskLevel <= -0.5 {
			mu += 0.2
		}
		return mu
	}
	mu += 0.4 * k.InnovationLevel
	if k.RiskLevel >= -0.2 {
		mu *= 0.8
	}
	return mu
}

// riskGate implements step 7.
func riskGate(candidates []*candidate, t float64) []*candidate {
	threshold := extremeRiskThresholdHighT
	if t <= 0.4 {
		threshold = extremeRiskThresholdLowT
	}
	out := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.kpt.RiskLevel > threshold {
			continue
		}
		out = append(out, c)
	}
	return out
}

// primaryTag is the first tag in a KPT's normalized tag set, used by the
// diversity floor as the tag that "represents" the KPT. Tag sets are
// deduplicated but order-preserving in this implementation, so this is
// stable across calls for a given KPT.
func primaryTag(k models.KPT) string {
	if len(k.Tags) == 0 {
		return ""
	}
	return k.Tags[0]
}

// diversityFloor implements step 8: once any single tag would account for
// ≥ limit/2 of a limit-sized result, further candidates carrying that tag
// as their primary tag have their weight halved. This is evaluated against
// the candidates' pre-halving rank order so the floor only kicks in once a
// tag has genuinely started to dominate.
func diversityFloor(candidates []*candidate, limit int) []*candidate {
	ranked := append([]*candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		if ranked[i].kpt.Score != ranked[j].kpt.Score {
			return ranked[i].kpt.Score > ranked[j].kpt.Score
		}
		return ranked[i].kpt.Name < ranked[j].kpt.Name
	})

	threshold := limit / 2
	if threshold < 1 {
		threshold = 1
	}

	tagCount := make(map[string]int)
	dominant := make(map[string]bool)
	for _, c := range ranked {
		if dominant[c.primaryTag] {
			c.weight /= 2
			continue
		}
		tagCount[c.primaryTag]++
		if tagCount[c.primaryTag] >= threshold {
			dominant[c.primaryTag] = true
		}
	}
	return candidates
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
