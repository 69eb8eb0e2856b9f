package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentRequest_Validate(t *testing.T) {
	assert.NoError(t, EnrichmentRequest{Name: "Acme"}.Validate())
	assert.NoError(t, EnrichmentRequest{Website: "https://acme.com"}.Validate())
	assert.ErrorIs(t, EnrichmentRequest{}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, EnrichmentRequest{Name: "   "}.Validate(), ErrInvalidInput)
}

func TestNormalizeDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.Acme.com/about": "acme.com",
		"acme.com":                   "acme.com",
		"http://acme.com:8080":       "acme.com",
		"":                           "",
		"://bad":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDomain(in), in)
	}
}

func TestSourceKind_Priority(t *testing.T) {
	assert.Greater(t, SourceScrape.Priority(), SourceSocial.Priority())
	assert.Greater(t, SourceSocial.Priority(), SourceSearch.Priority())
	assert.Zero(t, SourceKind("bogus").Priority())
}

func TestEvidenceRef_OmitsRawText(t *testing.T) {
	item := EvidenceItem{SourceKind: SourceScrape, SourceURL: "https://a.com", RawText: "big body"}
	ref := item.Ref()
	assert.Equal(t, "https://a.com", ref.SourceURL)
	assert.Equal(t, SourceScrape, ref.SourceKind)
}

func TestCompanyProfile_SetAndKnown(t *testing.T) {
	p := NewCompanyProfile()
	require.Len(t, p.Fields, len(ProfileFields))
	for _, f := range ProfileFields {
		assert.True(t, p.Fields[f].Unknown, f)
		assert.Zero(t, p.Confidence[f], f)
	}

	p.Set(ReconciledField{Field: FieldName, Value: "Acme", Confidence: 0.8})
	name, known := p.Known(FieldName)
	assert.True(t, known)
	assert.Equal(t, "Acme", name)
	assert.Equal(t, 0.8, p.Confidence[FieldName])

	// Unknown resolutions always report zero confidence.
	p.Set(ReconciledField{Field: FieldCEO, Unknown: true, Confidence: 0.7})
	assert.Zero(t, p.Confidence[FieldCEO])

	_, known = p.Known(FieldCEO)
	assert.False(t, known)
	assert.Nil(t, p.KnownSet(FieldProductsServices))

	p.Set(ReconciledField{Field: FieldProductsServices, Values: []string{"anvils"}, Confidence: 0.5})
	assert.Equal(t, []string{"anvils"}, p.KnownSet(FieldProductsServices))
}
