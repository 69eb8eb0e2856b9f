package model

// Schema field names. The profile carries exactly one ReconciledField per
// entry, in this order.
const (
	FieldName             = "name"
	FieldWebsite          = "website"
	FieldDescription      = "description"
	FieldIndustry         = "industry"
	FieldSize             = "size"
	FieldLocation         = "location"
	FieldRevenue          = "revenue"
	FieldEmployees        = "employees"
	FieldFoundedYear      = "founded_year"
	FieldCEO              = "ceo"
	FieldCTO              = "cto"
	FieldCFO              = "cfo"
	FieldProductsServices = "products_services"
	FieldSocialLinks      = "social_links"
)

// ProfileFields lists every schema field in output order.
var ProfileFields = []string{
	FieldName,
	FieldWebsite,
	FieldDescription,
	FieldIndustry,
	FieldSize,
	FieldLocation,
	FieldRevenue,
	FieldEmployees,
	FieldFoundedYear,
	FieldCEO,
	FieldCTO,
	FieldCFO,
	FieldProductsServices,
	FieldSocialLinks,
}

// SetValuedFields are reconciled by union rather than single-winner choice.
// social_links values are encoded as "platform=url" pairs.
var SetValuedFields = map[string]bool{
	FieldProductsServices: true,
	FieldSocialLinks:      true,
}

// CompetitorCandidate is one scored competitor. Unverified candidates only
// appear in the final list as explicitly flagged fallback entries.
type CompetitorCandidate struct {
	Name            string  `json:"name"`
	Website         string  `json:"website,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	Verified        bool    `json:"verified"`
	Rationale       string  `json:"rationale,omitempty"`
	Mentions        int     `json:"-"`
}

// CompanyProfile is the final enrichment output: one reconciled value per
// schema field, a parallel confidence map, and up to three competitors.
// Every schema field is always present; "unknown" is signalled by the
// field's Unknown flag and zero confidence, never by absence.
type CompanyProfile struct {
	Fields      map[string]ReconciledField `json:"fields"`
	Confidence  map[string]float64         `json:"confidence"`
	Competitors []CompetitorCandidate      `json:"competitors"`
}

// NewCompanyProfile returns a profile with every schema field resolved to
// unknown and an empty competitor list.
func NewCompanyProfile() *CompanyProfile {
	p := &CompanyProfile{
		Fields:      make(map[string]ReconciledField, len(ProfileFields)),
		Confidence:  make(map[string]float64, len(ProfileFields)),
		Competitors: []CompetitorCandidate{},
	}
	for _, f := range ProfileFields {
		p.Fields[f] = UnknownField(f)
		p.Confidence[f] = 0
	}
	return p
}

// Set records a reconciled field and mirrors its confidence into the
// confidence map. Unknown fields always report confidence 0.
func (p *CompanyProfile) Set(rf ReconciledField) {
	if rf.Unknown {
		rf.Confidence = 0
	}
	p.Fields[rf.Field] = rf
	p.Confidence[rf.Field] = rf.Confidence
}

// Known returns the chosen value for a field and whether it is known.
func (p *CompanyProfile) Known(field string) (string, bool) {
	rf, ok := p.Fields[field]
	if !ok || rf.Unknown {
		return "", false
	}
	return rf.Value, true
}

// KnownSet returns the value set for a set-valued field; nil when unknown.
func (p *CompanyProfile) KnownSet(field string) []string {
	rf, ok := p.Fields[field]
	if !ok || rf.Unknown {
		return nil
	}
	return rf.Values
}
