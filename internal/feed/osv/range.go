package osv

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RangeType selects how the events of a Range are interpreted.
type RangeType string

const (
	RangeSemver    RangeType = "SEMVER"
	RangeEcosystem RangeType = "ECOSYSTEM"
	RangeGit       RangeType = "GIT"
)

func (t RangeType) valid() bool {
	switch t {
	case RangeSemver, RangeEcosystem, RangeGit:
		return true
	}
	return false
}

// Range is an affected version range. Every variant carries events; Repo is
// required for GIT ranges, where it is always encoded even when empty, and
// optional otherwise.
type Range struct {
	Type             RangeType       `json:"type"`
	Events           []Event         `json:"events"`
	Repo             string          `json:"repo,omitempty"`
	DatabaseSpecific json.RawMessage `json:"database_specific,omitempty"`
}

func (r *Range) UnmarshalJSON(b []byte) error {
	var aux struct {
		Type             *string         `json:"type"`
		Events           []Event         `json:"events"`
		Repo             *string         `json:"repo"`
		DatabaseSpecific json.RawMessage `json:"database_specific"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Type == nil {
		return missing("range.type")
	}
	t := RangeType(*aux.Type)
	if !t.valid() {
		return unknown("range", *aux.Type)
	}
	if aux.Events == nil {
		return missing("range.events")
	}
	if t == RangeGit && aux.Repo == nil {
		return missing("range.repo")
	}
	*r = Range{Type: t, Events: aux.Events, DatabaseSpecific: opaque(aux.DatabaseSpecific)}
	if aux.Repo != nil {
		r.Repo = *aux.Repo
	}
	return nil
}

func (r Range) MarshalJSON() ([]byte, error) {
	if !r.Type.valid() {
		return nil, unknown("range", string(r.Type))
	}
	events := r.Events
	if events == nil {
		events = []Event{}
	}
	if r.Type == RangeGit {
		return json.Marshal(struct {
			Type             RangeType       `json:"type"`
			Events           []Event         `json:"events"`
			Repo             string          `json:"repo"`
			DatabaseSpecific json.RawMessage `json:"database_specific,omitempty"`
		}{r.Type, events, r.Repo, r.DatabaseSpecific})
	}
	type plain Range
	p := plain(r)
	p.Events = events
	return json.Marshal(p)
}

// EventKind is the key of a range event object.
type EventKind string

const (
	EventIntroduced   EventKind = "introduced"
	EventFixed        EventKind = "fixed"
	EventLastAffected EventKind = "last_affected"
	EventLimit        EventKind = "limit"
)

func (k EventKind) valid() bool {
	switch k {
	case EventIntroduced, EventFixed, EventLastAffected, EventLimit:
		return true
	}
	return false
}

// Event is a single range event. On the wire it is an object with exactly
// one key naming the kind: {"introduced": "1.0.0"}.
type Event struct {
	Kind    EventKind
	Version string
}

func (e *Event) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return fmt.Errorf("range event: want an object")
	}

	var kinds []EventKind
	var version *string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("range event: %w", err)
		}
		key, _ := tok.(string)
		kinds = append(kinds, EventKind(key))
		if len(kinds) > 1 {
			return fmt.Errorf("range event: want exactly one key, got %q and %q", kinds[0], key)
		}
		if err := dec.Decode(&version); err != nil {
			return fmt.Errorf("range event %s: %w", key, err)
		}
	}
	if len(kinds) == 0 {
		return fmt.Errorf("range event: want exactly one key, got 0")
	}

	kind := kinds[0]
	if !kind.valid() {
		return unknown("range event", string(kind))
	}
	if version == nil {
		return missing("range event " + string(kind))
	}
	*e = Event{Kind: kind, Version: *version}
	return nil
}

func (e Event) MarshalJSON() ([]byte, error) {
	if !e.Kind.valid() {
		return nil, unknown("range event", string(e.Kind))
	}
	return json.Marshal(map[string]string{string(e.Kind): e.Version})
}
