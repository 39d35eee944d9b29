package osv

import "encoding/json"

// SeverityType is the scoring scheme of a Severity entry.
type SeverityType string

const (
	SeverityCVSSv2 SeverityType = "CVSS_V2"
	SeverityCVSSv3 SeverityType = "CVSS_V3"
)

func (t SeverityType) valid() bool {
	return t == SeverityCVSSv2 || t == SeverityCVSSv3
}

// Severity is one scored severity. Score holds the CVSS vector string as
// published; it is not parsed.
type Severity struct {
	Type  SeverityType `json:"type"`
	Score string       `json:"score"`
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var aux struct {
		Type  *string `json:"type"`
		Score *string `json:"score"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Type == nil {
		return missing("severity.type")
	}
	if t := SeverityType(*aux.Type); !t.valid() {
		return unknown("severity", *aux.Type)
	}
	if aux.Score == nil {
		return missing("severity.score")
	}
	*s = Severity{Type: SeverityType(*aux.Type), Score: *aux.Score}
	return nil
}

func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Type.valid() {
		return nil, unknown("severity", string(s.Type))
	}
	type plain Severity
	return json.Marshal(plain(s))
}
