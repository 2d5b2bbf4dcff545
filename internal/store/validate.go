package store

import (
	"fmt"
	"regexp"

	"github.com/playbookhq/engine/internal/models"
)

// PruneThreshold is the score at or below which a KPT must have been
// removed by the last reflection (invariant 4 / testable property 1).
const PruneThreshold = -5

// MaxKPTs is the maximum total playbook size (invariant 5).
const MaxKPTs = 250

var kptNamePattern = regexp.MustCompile(`^kpt_\d{3,}$`)

// Validate checks every invariant in the data model against pb. It is
// called by Storage.Store before any write, and by Reflector after
// applying deltas/merges/admissions but before the final store.
func Validate(pb *models.Playbook) error {
	all := pb.All()

	if err := validateNameUniquenessAndDensity(all); err != nil {
		return err
	}
	if err := validateRegionOrdering(pb); err != nil {
		return err
	}
	for _, k := range all {
		if err := validateKPT(k); err != nil {
			return err
		}
	}
	if pb.Len() > MaxKPTs {
		return fmt.Errorf("playbook size %d exceeds max_kpts %d", pb.Len(), MaxKPTs)
	}
	return nil
}

// validateNameUniquenessAndDensity enforces invariant 1: unique names
// forming the dense prefix kpt_001..kpt_N.
func validateNameUniquenessAndDensity(all []models.KPT) error {
	seen := make(map[string]bool, len(all))
	for _, k := range all {
		if !kptNamePattern.MatchString(k.Name) {
			return fmt.Errorf("kpt name %q does not match kpt_NNN", k.Name)
		}
		if seen[k.Name] {
			return fmt.Errorf("duplicate kpt name %q", k.Name)
		}
		seen[k.Name] = true
	}
	for i := 1; i <= len(all); i++ {
		want := fmt.Sprintf("kpt_%03d", i)
		if !seen[want] {
			return fmt.Errorf("name sequence is not dense: missing %s", want)
		}
	}
	return nil
}

// validateRegionOrdering enforces invariant 2: stable precedes pending,
// no interleaving. Because Playbook keeps the two regions as separate
// slices, this reduces to checking that every stable entry is actually
// marked !Pending and every pending entry is marked Pending.
func validateRegionOrdering(pb *models.Playbook) error {
	for _, k := range pb.Stable {
		if k.Pending {
			return fmt.Errorf("kpt %q is in the stable region but marked pending", k.Name)
		}
	}
	for _, k := range pb.Pending {
		if !k.Pending {
			return fmt.Errorf("kpt %q is in the pending region but not marked pending", k.Name)
		}
	}
	return nil
}

// validateKPT enforces invariants 3, 4, and 6 for a single KPT.
func validateKPT(k models.KPT) error {
	if k.Text == "" && (k.When == "" || k.Do == "") {
		return fmt.Errorf("kpt %q has neither text nor when+do", k.Name)
	}
	if len(k.Tags) == 0 {
		return fmt.Errorf("kpt %q has an empty tag set", k.Name)
	}
	if k.Score <= PruneThreshold {
		return fmt.Errorf("kpt %q has score %d at or below prune threshold %d", k.Name, k.Score, PruneThreshold)
	}
	if k.EffectRating < 0 || k.EffectRating > 1 {
		return fmt.Errorf("kpt %q effect_rating %f out of [0,1]", k.Name, k.EffectRating)
	}
	if k.InnovationLevel < 0 || k.InnovationLevel > 1 {
		return fmt.Errorf("kpt %q innovation_level %f out of [0,1]", k.Name, k.InnovationLevel)
	}
	if k.RiskLevel < -1 || k.RiskLevel > 0 {
		return fmt.Errorf("kpt %q risk_level %f out of [-1,0]", k.Name, k.RiskLevel)
	}
	return nil
}

// Clamp clamps numeric attributes to their declared ranges, per invariant
// 6. It is applied on write paths before validation (e.g. after applying
// an LLM-proposed delta) so a bad score/rating never itself fails
// validation silently — it's corrected instead.
func Clamp(k *models.KPT) {
	if k.EffectRating < 0 {
		k.EffectRating = 0
	} else if k.EffectRating > 1 {
		k.EffectRating = 1
	}
	if k.InnovationLevel < 0 {
		k.InnovationLevel = 0
	} else if k.InnovationLevel > 1 {
		k.InnovationLevel = 1
	}
	if k.RiskLevel < -1 {
		k.RiskLevel = -1
	} else if k.RiskLevel > 0 {
		k.RiskLevel = 0
	}
	if k.Score > 20 {
		k.Score = 20
	}
}
