package model

import "time"

// SourceKind classifies where a piece of evidence came from. Kinds carry a
// fixed trust priority used as a reconciliation tie-break: a scrape of the
// company's own pages outranks a social profile, which outranks a
// third-party search snippet.
type SourceKind string

const (
	SourceScrape SourceKind = "scrape"
	SourceSocial SourceKind = "social"
	SourceSearch SourceKind = "search"
)

// Priority returns the trust rank of the source kind; higher wins.
func (k SourceKind) Priority() int {
	switch k {
	case SourceScrape:
		return 3
	case SourceSocial:
		return 2
	case SourceSearch:
		return 1
	default:
		return 0
	}
}

// EvidenceItem is one raw external signal: a search snippet or a fetched
// page. Items are immutable once created and scoped to a single run.
type EvidenceItem struct {
	SourceKind  SourceKind `json:"source_kind"`
	SourceURL   string     `json:"source_url"`
	Title       string     `json:"title,omitempty"`
	RawText     string     `json:"raw_text"`
	Query       string     `json:"query,omitempty"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// Ref returns a lightweight reference suitable for audit trails. Refs never
// carry the raw text, so retaining them does not pin page bodies in memory.
func (e *EvidenceItem) Ref() EvidenceRef {
	return EvidenceRef{
		SourceKind:  e.SourceKind,
		SourceURL:   e.SourceURL,
		Query:       e.Query,
		RetrievedAt: e.RetrievedAt,
	}
}

// EvidenceRef is a weak reference to an EvidenceItem kept inside
// ReconciledField for auditability.
type EvidenceRef struct {
	SourceKind  SourceKind `json:"source_kind"`
	SourceURL   string     `json:"source_url"`
	Query       string     `json:"query,omitempty"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}
