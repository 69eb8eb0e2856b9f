package model

import "time"

// FieldCandidate is one extracted value for one field, tagged with the
// evidence it came from and a confidence estimate. Several candidates may
// exist per field before reconciliation.
type FieldCandidate struct {
	Field       string        `json:"field"`
	Value       string        `json:"value"`
	Confidence  float64       `json:"confidence"`
	Evidence    *EvidenceItem `json:"-"`
	ExtractedAt time.Time     `json:"extracted_at"`
}

// ReconciledField is the single chosen value for a field after merging all
// candidates. Unknown is a valid terminal state, not an error; its
// confidence is always 0.
type ReconciledField struct {
	Field      string        `json:"field"`
	Value      string        `json:"value,omitempty"`
	Values     []string      `json:"values,omitempty"` // set-valued fields only
	Unknown    bool          `json:"unknown"`
	Confidence float64       `json:"confidence"`
	Supporting []EvidenceRef `json:"supporting_evidence,omitempty"`
}

// UnknownField returns the terminal "unknown" resolution for a field.
func UnknownField(field string) ReconciledField {
	return ReconciledField{Field: field, Unknown: true}
}
