// Package collect implements the evidence collector: bounded, retryable
// search and fetch wrapped behind uniform calls that degrade to empty
// results instead of failing a run.
package collect

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/resilience"
	"github.com/clearbound/enrich-cli/internal/schema"
	"github.com/clearbound/enrich-cli/pkg/firecrawl"
	"github.com/clearbound/enrich-cli/pkg/jina"
)

// SearchTask is one bounded evidence-gathering task: a concrete query, a
// result cap, and how many of the top results to follow through fetch.
type SearchTask struct {
	Query      string
	MaxResults int
	FollowTop  int
	SiteFilter string
}

// Validate checks task constraints.
func (t SearchTask) Validate() error {
	if strings.TrimSpace(t.Query) == "" {
		return eris.New("collect: task query must be non-empty")
	}
	if t.MaxResults < 1 {
		return eris.New("collect: task max results must be >= 1")
	}
	return nil
}

// Collector wraps the search and fetch capabilities. It enforces a per-run
// concurrency cap and rate limit across all outbound calls, independent of
// how many field-group tasks run concurrently. Stateless between calls.
type Collector struct {
	search  jina.Client
	scrape  firecrawl.Client // optional fetch fallback
	limiter *rate.Limiter
	sem     chan struct{}
	retry   resilience.Policy
	maxLen  int
}

// New creates a Collector from configuration.
func New(cfg config.CollectConfig, search jina.Client, scrape firecrawl.Client) *Collector {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	perSec := cfg.RatePerSecond
	if perSec <= 0 {
		perSec = 4
	}
	return &Collector{
		search:  search,
		scrape:  scrape,
		limiter: rate.NewLimiter(rate.Limit(perSec), maxConcurrent),
		sem:     make(chan struct{}, maxConcurrent),
		retry: resilience.Policy{
			MaxAttempts: cfg.MaxRetries,
			BaseBackoff: time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
			MaxBackoff:  time.Duration(cfg.BackoffCapMS) * time.Millisecond,
			Factor:      cfg.BackoffFactor,
		},
		maxLen: cfg.MaxEvidenceLen,
	}
}

// admit blocks until an outbound call slot and rate token are available.
// The release func must be called when the call finishes.
func (c *Collector) admit(ctx context.Context) (func(), error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		<-c.sem
		return nil, err
	}
	return func() { <-c.sem }, nil
}

// Collect runs one search task and returns the evidence it produced.
// Transient failures are retried per policy; a failure that persists past
// the bound yields an empty slice, never an error — partial evidence is
// acceptable. Evidence is deduplicated by source URL within the call.
func (c *Collector) Collect(ctx context.Context, task SearchTask) ([]model.EvidenceItem, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	results, err := c.doSearch(ctx, task)
	if err != nil {
		zap.L().Warn("collect: search degraded to empty",
			zap.String("query", task.Query),
			zap.Error(err),
		)
		return nil, nil
	}

	seen := make(map[string]bool, len(results))
	items := make([]model.EvidenceItem, 0, len(results))
	for _, r := range results {
		if len(items) >= task.MaxResults {
			break
		}
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true

		text := r.Description
		if r.Content != "" {
			text = r.Content
		}
		items = append(items, model.EvidenceItem{
			SourceKind:  kindForURL(r.URL, model.SourceSearch),
			SourceURL:   r.URL,
			Title:       r.Title,
			RawText:     c.clip(text),
			Query:       task.Query,
			RetrievedAt: time.Now().UTC(),
		})
	}

	// Follow the top-N result URLs through fetch for full page text.
	followed := 0
	for i := 0; i < len(items) && followed < task.FollowTop; i++ {
		page, fetchErr := c.Fetch(ctx, items[i].SourceURL, items[i].Query)
		if fetchErr != nil {
			zap.L().Debug("collect: follow fetch failed",
				zap.String("url", items[i].SourceURL),
				zap.Error(fetchErr),
			)
			continue
		}
		followed++
		// Replace the snippet with the richer page body; the URL stays the
		// same so dedupe still holds.
		items[i] = *page
	}

	return items, nil
}

func (c *Collector) doSearch(ctx context.Context, task SearchTask) ([]jina.SearchResult, error) {
	release, err := c.admit(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := resilience.Do(ctx, c.retry, "search", func(ctx context.Context) (*jina.SearchResponse, error) {
		var opts []jina.SearchOption
		if task.SiteFilter != "" {
			opts = append(opts, jina.WithSiteFilter(task.SiteFilter))
		}
		return c.search.Search(ctx, task.Query, opts...)
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Fetch retrieves one URL as an evidence item, trying the reader first and
// falling back to the scrape client. Returns an error when every fetcher
// fails; callers treat that as missing evidence for the URL.
func (c *Collector) Fetch(ctx context.Context, targetURL, query string) (*model.EvidenceItem, error) {
	release, err := c.admit(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var title, content string
	read, err := resilience.Do(ctx, c.retry, "fetch", func(ctx context.Context) (*jina.ReadResponse, error) {
		return c.search.Read(ctx, targetURL)
	})
	if err == nil && read.Data.Content != "" {
		title = read.Data.Title
		content = read.Data.Content
	} else if c.scrape != nil {
		scraped, scrapeErr := resilience.Do(ctx, c.retry, "fetch_fallback", func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
			return c.scrape.Scrape(ctx, firecrawl.ScrapeRequest{URL: targetURL})
		})
		if scrapeErr != nil {
			return nil, eris.Wrapf(scrapeErr, "collect: fetch %s", targetURL)
		}
		title = scraped.Data.Metadata.Title
		content = scraped.Data.Markdown
	} else if err != nil {
		return nil, eris.Wrapf(err, "collect: fetch %s", targetURL)
	}

	if strings.TrimSpace(content) == "" {
		return nil, eris.Errorf("collect: fetch %s returned no text", targetURL)
	}

	return &model.EvidenceItem{
		SourceKind:  kindForURL(targetURL, model.SourceScrape),
		SourceURL:   targetURL,
		Title:       title,
		RawText:     c.clip(content),
		Query:       query,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

func (c *Collector) clip(s string) string {
	if c.maxLen > 0 && len(s) > c.maxLen {
		return s[:c.maxLen]
	}
	return s
}

// kindForURL classifies evidence from a URL: known social platforms are
// tagged social regardless of how the page was obtained.
func kindForURL(rawURL string, fallback model.SourceKind) model.SourceKind {
	if schema.PlatformFor(rawURL) != "" {
		return model.SourceSocial
	}
	return fallback
}
