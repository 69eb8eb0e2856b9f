package collect

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/resilience"
	"github.com/clearbound/enrich-cli/pkg/firecrawl"
	"github.com/clearbound/enrich-cli/pkg/jina"
)

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Search(ctx context.Context, query string, opts ...jina.SearchOption) (*jina.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.SearchResponse), args.Error(1)
}

func (m *mockJina) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}

type mockFirecrawl struct {
	mock.Mock
}

func (m *mockFirecrawl) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.ScrapeResponse), args.Error(1)
}

func testConfig() config.CollectConfig {
	return config.CollectConfig{
		MaxResults:    5,
		FollowTop:     0,
		MaxConcurrent: 4,
		RatePerSecond: 1000,
		MaxRetries:    2,
		BackoffBaseMS: 1,
		BackoffCapMS:  2,
		BackoffFactor: 2,
	}
}

func TestCollect_DedupesByURL(t *testing.T) {
	j := &mockJina{}
	j.On("Search", mock.Anything, "acme").Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "Acme", URL: "https://acme.com", Description: "anvils"},
		{Title: "Acme dup", URL: "https://acme.com", Description: "anvils again"},
		{Title: "Acme LinkedIn", URL: "https://linkedin.com/company/acme", Description: "profile"},
	}}, nil)

	c := New(testConfig(), j, nil)
	items, err := c.Collect(context.Background(), SearchTask{Query: "acme", MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.SourceSearch, items[0].SourceKind)
	assert.Equal(t, model.SourceSocial, items[1].SourceKind)
	assert.Equal(t, "acme", items[0].Query)
}

func TestCollect_PersistentFailureDegradesToEmpty(t *testing.T) {
	j := &mockJina{}
	j.On("Search", mock.Anything, "acme").Return(nil, resilience.MarkTransient(eris.New("down"), 503))

	c := New(testConfig(), j, nil)
	items, err := c.Collect(context.Background(), SearchTask{Query: "acme", MaxResults: 3})
	require.NoError(t, err)
	assert.Empty(t, items)
	// Retried up to the attempt bound.
	j.AssertNumberOfCalls(t, "Search", 2)
}

func TestCollect_InvalidTask(t *testing.T) {
	c := New(testConfig(), &mockJina{}, nil)

	_, err := c.Collect(context.Background(), SearchTask{Query: "  ", MaxResults: 3})
	assert.Error(t, err)

	_, err = c.Collect(context.Background(), SearchTask{Query: "acme", MaxResults: 0})
	assert.Error(t, err)
}

func TestCollect_FollowTopReplacesSnippet(t *testing.T) {
	j := &mockJina{}
	j.On("Search", mock.Anything, "acme").Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "Acme", URL: "https://acme.com", Description: "snippet"},
	}}, nil)
	j.On("Read", mock.Anything, "https://acme.com").Return(&jina.ReadResponse{
		Data: jina.ReadData{Title: "Acme — Home", Content: "# Acme\nfull page text"},
	}, nil)

	cfg := testConfig()
	cfg.FollowTop = 1
	c := New(cfg, j, nil)

	items, err := c.Collect(context.Background(), SearchTask{Query: "acme", MaxResults: 3, FollowTop: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.SourceScrape, items[0].SourceKind)
	assert.Contains(t, items[0].RawText, "full page text")
}

func TestFetch_FallsBackToScrape(t *testing.T) {
	j := &mockJina{}
	j.On("Read", mock.Anything, "https://acme.com").Return(nil, eris.New("reader refused"))
	fc := &mockFirecrawl{}
	fc.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.ScrapeData{Markdown: "scraped body", Metadata: firecrawl.ScrapeMetadata{Title: "Acme"}},
	}, nil)

	c := New(testConfig(), j, fc)
	item, err := c.Fetch(context.Background(), "https://acme.com", "q")
	require.NoError(t, err)
	assert.Equal(t, "scraped body", item.RawText)
	assert.Equal(t, model.SourceScrape, item.SourceKind)
}

func TestFetch_AllFetchersFail(t *testing.T) {
	j := &mockJina{}
	j.On("Read", mock.Anything, mock.Anything).Return(nil, eris.New("nope"))
	fc := &mockFirecrawl{}
	fc.On("Scrape", mock.Anything, mock.Anything).Return(nil, eris.New("also nope"))

	c := New(testConfig(), j, fc)
	_, err := c.Fetch(context.Background(), "https://acme.com", "q")
	assert.Error(t, err)
}

func TestCollect_ClipsEvidence(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	j := &mockJina{}
	j.On("Search", mock.Anything, "acme").Return(&jina.SearchResponse{Data: []jina.SearchResult{
		{Title: "Acme", URL: "https://acme.com", Content: string(long)},
	}}, nil)

	cfg := testConfig()
	cfg.MaxEvidenceLen = 10
	c := New(cfg, j, nil)

	items, err := c.Collect(context.Background(), SearchTask{Query: "acme", MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Len(t, items[0].RawText, 10)
}
