// Package osv models advisory documents in the OSV schema as published by the
// GitHub Advisory Database (https://ossf.github.io/osv-schema/), including the
// GitHub-specific database_specific block.
//
// Decoding is strict. A document either matches the schema in full and yields
// one *Advisory, or it is rejected with a *ParseError. Required members are
// checked explicitly because encoding/json leaves absent fields at their zero
// value; tagged unions (severity, range, event) and the ecosystem enumeration
// reject unknown tags instead of defaulting. Unknown object members are ignored.
//
// Timestamps are kept as the strings found in the document; nothing here
// validates date formats or version-range semantics.
package osv

import (
	"bytes"
	"encoding/json"
)

// Advisory is one security advisory. Pointer fields distinguish an absent
// member from an empty one; the store writes absent members as NULL.
type Advisory struct {
	ID               string            `json:"id"`
	Modified         string            `json:"modified"`
	Published        *string           `json:"published,omitempty"`
	Withdrawn        *string           `json:"withdrawn,omitempty"`
	Aliases          []string          `json:"aliases,omitempty"`
	Related          []string          `json:"related,omitempty"`
	Summary          *string           `json:"summary,omitempty"`
	Details          *string           `json:"details,omitempty"`
	Severity         []Severity        `json:"severity,omitempty"`
	Affected         []Affected        `json:"affected,omitempty"`
	References       []Reference       `json:"references,omitempty"`
	Credits          []Credit          `json:"credits,omitempty"`
	DatabaseSpecific *DatabaseSpecific `json:"database_specific,omitempty"`
}

// DatabaseSpecific is the GitHub Advisory Database extension record.
type DatabaseSpecific struct {
	CWEIDs         []string `json:"cwe_ids,omitempty"`
	Severity       *string  `json:"severity,omitempty"`
	GitHubReviewed *bool    `json:"github_reviewed,omitempty"`
}

// Affected is one package affected by an advisory. The ecosystem- and
// database-specific payloads are carried through undecoded.
type Affected struct {
	Package           Package         `json:"package"`
	Versions          []string        `json:"versions,omitempty"`
	Ranges            []Range         `json:"ranges,omitempty"`
	EcosystemSpecific json.RawMessage `json:"ecosystem_specific,omitempty"`
	DatabaseSpecific  json.RawMessage `json:"database_specific,omitempty"`
}

// Package identifies a package within an ecosystem.
type Package struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Name      string    `json:"name"`
	Purl      *string   `json:"purl,omitempty"`
}

// Reference is a link attached to an advisory.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Credit names a person or organisation credited on an advisory.
type Credit struct {
	Name    string   `json:"name"`
	Contact []string `json:"contact,omitempty"`
}

// CVE returns the first alias, which GitHub advisories use for the CVE id,
// or nil when the advisory has no aliases.
func (a *Advisory) CVE() *string {
	if len(a.Aliases) == 0 {
		return nil
	}
	cve := a.Aliases[0]
	return &cve
}

func (a *Advisory) UnmarshalJSON(b []byte) error {
	type plain Advisory
	var aux struct {
		plain
		ID       *string `json:"id"`
		Modified *string `json:"modified"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.ID == nil {
		return missing("id")
	}
	if aux.Modified == nil {
		return missing("modified")
	}
	*a = Advisory(aux.plain)
	a.ID = *aux.ID
	a.Modified = *aux.Modified
	return nil
}

func (a *Affected) UnmarshalJSON(b []byte) error {
	type plain Affected
	var aux struct {
		plain
		Package *Package `json:"package"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Package == nil {
		return missing("affected.package")
	}
	*a = Affected(aux.plain)
	a.Package = *aux.Package
	a.EcosystemSpecific = opaque(a.EcosystemSpecific)
	a.DatabaseSpecific = opaque(a.DatabaseSpecific)
	return nil
}

func (p *Package) UnmarshalJSON(b []byte) error {
	var aux struct {
		Ecosystem *Ecosystem `json:"ecosystem"`
		Name      *string    `json:"name"`
		Purl      *string    `json:"purl"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Ecosystem == nil {
		return missing("package.ecosystem")
	}
	if aux.Name == nil {
		return missing("package.name")
	}
	*p = Package{Ecosystem: *aux.Ecosystem, Name: *aux.Name, Purl: aux.Purl}
	return nil
}

func (r *Reference) UnmarshalJSON(b []byte) error {
	var aux struct {
		Type *string `json:"type"`
		URL  *string `json:"url"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Type == nil {
		return missing("reference.type")
	}
	if aux.URL == nil {
		return missing("reference.url")
	}
	*r = Reference{Type: *aux.Type, URL: *aux.URL}
	return nil
}

func (c *Credit) UnmarshalJSON(b []byte) error {
	var aux struct {
		Name    *string  `json:"name"`
		Contact []string `json:"contact"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Name == nil {
		return missing("credit.name")
	}
	*c = Credit{Name: *aux.Name, Contact: aux.Contact}
	return nil
}

// opaque compacts a pass-through payload and drops an explicit JSON null so
// it is treated like an absent one.
func opaque(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
