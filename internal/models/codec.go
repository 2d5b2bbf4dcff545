package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// playbookWire is the on-disk shape: a flat key_points array with a
// {"divider": true} sentinel separating the stable and pending regions.
type playbookWire struct {
	Version     string            `json:"version"`
	LastUpdated time.Time         `json:"last_updated"`
	KeyPoints   []json.RawMessage `json:"key_points"`
}

// MarshalJSON renders the in-memory stable/pending split back into the
// flat sentinel-divided array. Consumers that ignore unknown objects still
// round-trip safely, since every emitted object is either a well-formed
// KPT or the divider sentinel.
func (p Playbook) MarshalJSON() ([]byte, error) {
	points := make([]json.RawMessage, 0, p.Len()+1)
	for _, k := range p.Stable {
		raw, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		points = append(points, raw)
	}
	divRaw, _ := json.Marshal(divider{Divider: true})
	points = append(points, divRaw)
	for _, k := range p.Pending {
		raw, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		points = append(points, raw)
	}
	return json.Marshal(playbookWire{
		Version:     p.Version,
		LastUpdated: p.LastUpdated,
		KeyPoints:   points,
	})
}

// UnmarshalJSON parses the flat sentinel-divided array back into the
// stable/pending split. An entry is the divider sentinel when its
// "divider" field is true and it has no "name"; every other entry is
// decoded as a KPT. Anything (including a malformed divider) before the first
// divider sentinel is treated as stable, and a missing divider puts
// everything in the stable region.
func (p *Playbook) UnmarshalJSON(data []byte) error {
	var wire playbookWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("parsing playbook: %w", err)
	}

	p.Version = wire.Version
	p.LastUpdated = wire.LastUpdated
	p.Stable = []KPT{}
	p.Pending = []KPT{}

	seenDivider := false
	for _, raw := range wire.KeyPoints {
		var probe struct {
			Divider bool   `json:"divider"`
			Name    string `json:"name"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			return fmt.Errorf("parsing key_points entry: %w", err)
		}
		if probe.Divider && probe.Name == "" {
			seenDivider = true
			continue
		}

		var k KPT
		if err := json.Unmarshal(raw, &k); err != nil {
			return fmt.Errorf("parsing KPT %q: %w", probe.Name, err)
		}
		if seenDivider {
			p.Pending = append(p.Pending, k)
		} else {
			p.Stable = append(p.Stable, k)
		}
	}
	return nil
}
