package extract

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/schema"
	"github.com/clearbound/enrich-cli/pkg/anthropic"
)

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func newTestExtractor(ai anthropic.Client) *Extractor {
	return New(
		config.AnthropicConfig{Model: "claude-haiku-4-5-20251001", MaxTokens: 512},
		config.ExtractConfig{PromptBudget: 4000},
		ai,
		schema.MustLoad(),
	)
}

func scrapeItem(text string) model.EvidenceItem {
	return model.EvidenceItem{
		SourceKind: model.SourceScrape,
		SourceURL:  "https://acme.com",
		RawText:    text,
	}
}

func TestExtract_ScalarFields(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"name": {"value": "Acme Corp", "confidence": 0.9}, "founded_year": {"value": 1999, "confidence": 0.8}}`,
	), nil)

	e := newTestExtractor(ai)
	item := scrapeItem("Acme Corp was founded in 1999.")
	cands, err := e.Extract(context.Background(), "Acme Corp", []model.EvidenceItem{item}, []string{"name", "founded_year"})
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, "name", cands[0].Field)
	assert.Equal(t, "Acme Corp", cands[0].Value)
	assert.NotNil(t, cands[0].Evidence)

	assert.Equal(t, "founded_year", cands[1].Field)
	assert.Equal(t, "1999", cands[1].Value)
}

func TestExtract_DiscardsInvalidValues(t *testing.T) {
	ai := &mockAnthropic{}
	// founded_year out of range, ceo marked not found: both discarded.
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"founded_year": {"value": "1234", "confidence": 0.9}, "ceo": {"value": "not found", "confidence": 0.1}}`,
	), nil)

	e := newTestExtractor(ai)
	cands, err := e.Extract(context.Background(), "Acme", []model.EvidenceItem{scrapeItem("text")}, []string{"founded_year", "ceo"})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestExtract_SetAndLinkFields(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"products_services": {"values": ["anvils", "rockets"], "confidence": 0.8},
		  "social_links": {"values": {"linkedin": "https://linkedin.com/company/acme", "myspace": "https://myspace.com/acme"}, "confidence": 0.7}}`,
	), nil)

	e := newTestExtractor(ai)
	cands, err := e.Extract(context.Background(), "Acme", []model.EvidenceItem{scrapeItem("anvils rockets")},
		[]string{"products_services", "social_links"})
	require.NoError(t, err)

	var values []string
	for _, c := range cands {
		values = append(values, c.Value)
	}
	assert.Contains(t, values, "anvils")
	assert.Contains(t, values, "rockets")
	// Whitelisted platform survives, unknown platform is discarded.
	assert.Contains(t, values, "linkedin=https://linkedin.com/company/acme")
	assert.Len(t, cands, 3)
}

func TestExtract_FailedCallSkipsItem(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("overloaded")).Once()
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"name": {"value": "Acme", "confidence": 0.9}}`,
	), nil).Once()

	e := newTestExtractor(ai)
	items := []model.EvidenceItem{scrapeItem("a"), scrapeItem("Acme official site")}
	cands, err := e.Extract(context.Background(), "Acme", items, []string{"name"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Acme", cands[0].Value)
}

func TestExtract_ConfidenceWeighting(t *testing.T) {
	e := newTestExtractor(&mockAnthropic{})

	scrape := scrapeItem("no mention here")
	search := model.EvidenceItem{SourceKind: model.SourceSearch, RawText: "no mention"}

	full := e.confidence(0.8, "Acme Corp", &scrape)
	weighted := e.confidence(0.8, "Acme Corp", &search)
	assert.InDelta(t, 0.8, full, 1e-9)
	assert.InDelta(t, 0.64, weighted, 1e-9)

	// Verbatim presence boosts, capped below 1.
	present := scrapeItem("Acme Corp makes anvils")
	boosted := e.confidence(0.9, "Acme Corp", &present)
	assert.InDelta(t, 0.95, boosted, 1e-9)
}

func TestExtract_CredibleSourceBoostsPeople(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		`{"ceo": {"value": "Pat Doe", "confidence": 0.6}}`,
	), nil)

	e := newTestExtractor(ai)
	items := []model.EvidenceItem{
		{SourceKind: model.SourceSocial, SourceURL: "https://www.linkedin.com/in/patdoe", RawText: "Pat Doe, CEO of Acme"},
		{SourceKind: model.SourceSearch, SourceURL: "https://example.com/article", RawText: "Pat Doe, CEO of Acme"},
	}
	cands, err := e.Extract(context.Background(), "Acme", items, []string{"ceo"})
	require.NoError(t, err)
	require.Len(t, cands, 2)

	// social 0.9 weight + verbatim 0.1 + credible host 0.05
	assert.InDelta(t, 0.69, cands[0].Confidence, 1e-9)
	// search 0.8 weight + verbatim 0.1, no host boost
	assert.InDelta(t, 0.58, cands[1].Confidence, 1e-9)
}

func TestCompanyNames(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(
		"```json\n[\"Initech\", \"Globex\", \"Initech\"]\n```",
	), nil)

	e := newTestExtractor(ai)
	names, err := e.CompanyNames(context.Background(), "anvils", []model.EvidenceItem{scrapeItem("top anvil makers")})
	require.NoError(t, err)
	// Duplicates preserved for mention counting.
	assert.Equal(t, []string{"Initech", "Globex", "Initech"}, names)
}

func TestUnmarshalLoose(t *testing.T) {
	var m map[string]fieldAnswer
	err := unmarshalLoose("Here is the data:\n```json\n{\"name\": {\"value\": \"A\", \"confidence\": 0.5}}\n```\nDone.", &m)
	require.NoError(t, err)
	assert.Equal(t, "A", m["name"].Value)

	err = unmarshalLoose("no json at all", &m)
	assert.Error(t, err)
}

func TestExtractor_AccumulatesUsage(t *testing.T) {
	ai := &mockAnthropic{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(`{"name": {"value": "Acme", "confidence": 0.9}}`), nil)

	e := newTestExtractor(ai)
	items := []model.EvidenceItem{scrapeItem("a"), scrapeItem("b")}
	_, err := e.Extract(context.Background(), "Acme", items, []string{"name"})
	require.NoError(t, err)

	u := e.Usage()
	assert.Equal(t, int64(20), u.InputTokens)
	assert.Equal(t, int64(10), u.OutputTokens)
}
