// Package models defines the playbook data model: the persisted document,
// its Key Points, and the shapes the rest of the engine passes between
// components.
package models

import "time"

// SchemaVersion is the current on-disk playbook schema version.
const SchemaVersion = "2.0"

// KPT is a single Key Point: a short, scored, tagged lesson extracted from
// a prior conversation.
type KPT struct {
	Name string `json:"name"`

	// Text is the legacy single-statement shape. Exactly one of Text or
	// (When, Do) is populated on any given KPT, but both are accepted on
	// read per the tagged-variant rule in the design notes.
	Text string `json:"text,omitempty"`
	When string `json:"when,omitempty"`
	Do   string `json:"do,omitempty"`

	Tags []string `json:"tags"`

	Score           int     `json:"score"`
	EffectRating    float64 `json:"effect_rating"`
	RiskLevel       float64 `json:"risk_level"`
	InnovationLevel float64 `json:"innovation_level"`

	Pending bool `json:"pending"`

	// CreatedAt/LastSeenAt and SourceSessionID are diagnostic metadata only;
	// they participate in no invariant, score, or ordering rule.
	CreatedAt       time.Time `json:"created_at,omitempty"`
	LastSeenAt      time.Time `json:"last_seen_at,omitempty"`
	SourceSessionID string    `json:"source_session_id,omitempty"`
}

// HasStructuredBody reports whether the KPT uses the v2.0 when/do shape
// rather than the legacy single-text shape.
func (k KPT) HasStructuredBody() bool {
	return k.When != "" || k.Do != ""
}

// Body returns the KPT's statement as a single rendered string, used by
// the Selector for text-hit scanning and by injection rendering.
func (k KPT) Body() string {
	if k.HasStructuredBody() {
		return "When " + k.When + ", do " + k.Do
	}
	return k.Text
}

// divider is the sentinel object written between the stable and pending
// regions of the on-disk key_points array.
type divider struct {
	Divider bool `json:"divider"`
}

// Playbook is the persisted per-project corpus of KPTs.
type Playbook struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`

	// Stable and Pending are kept as separate in-memory slices; the
	// divider sentinel exists only in the on-disk encoding (see
	// MarshalJSON/UnmarshalJSON in codec.go).
	Stable  []KPT `json:"-"`
	Pending []KPT `json:"-"`
}

// All returns the stable region followed by the pending region, the
// canonical sequence order described by invariant 2.
func (p *Playbook) All() []KPT {
	out := make([]KPT, 0, len(p.Stable)+len(p.Pending))
	out = append(out, p.Stable...)
	out = append(out, p.Pending...)
	return out
}

// Find returns a pointer to the KPT with the given name, searching both
// regions, or nil if absent. The returned pointer aliases playbook state;
// callers must not retain it past a Reorder/Renumber.
func (p *Playbook) Find(name string) *KPT {
	for i := range p.Stable {
		if p.Stable[i].Name == name {
			return &p.Stable[i]
		}
	}
	for i := range p.Pending {
		if p.Pending[i].Name == name {
			return &p.Pending[i]
		}
	}
	return nil
}

// Len returns the total KPT count across both regions.
func (p *Playbook) Len() int {
	return len(p.Stable) + len(p.Pending)
}

// Clone returns a deep-enough copy for use as a Storage snapshot: KPT
// values are copied (they contain no pointers besides Tags, which is
// copied explicitly), so mutating the clone never affects the original.
func (p *Playbook) Clone() *Playbook {
	if p == nil {
		return nil
	}
	clone := &Playbook{
		Version:     p.Version,
		LastUpdated: p.LastUpdated,
		Stable:      make([]KPT, len(p.Stable)),
		Pending:     make([]KPT, len(p.Pending)),
	}
	for i, k := range p.Stable {
		clone.Stable[i] = k
		clone.Stable[i].Tags = append([]string(nil), k.Tags...)
	}
	for i, k := range p.Pending {
		clone.Pending[i] = k
		clone.Pending[i].Tags = append([]string(nil), k.Tags...)
	}
	return clone
}

// Empty returns a freshly initialized, empty Playbook at the current
// schema version.
func Empty() *Playbook {
	return &Playbook{
		Version: SchemaVersion,
		Stable:  []KPT{},
		Pending: []KPT{},
	}
}
