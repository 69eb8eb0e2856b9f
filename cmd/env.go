package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/clearbound/enrich-cli/internal/collect"
	"github.com/clearbound/enrich-cli/internal/competitor"
	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/enrich"
	"github.com/clearbound/enrich-cli/internal/extract"
	"github.com/clearbound/enrich-cli/internal/reconcile"
	"github.com/clearbound/enrich-cli/internal/schema"
	"github.com/clearbound/enrich-cli/internal/store"
	"github.com/clearbound/enrich-cli/pkg/anthropic"
	"github.com/clearbound/enrich-cli/pkg/firecrawl"
	"github.com/clearbound/enrich-cli/pkg/google"
	"github.com/clearbound/enrich-cli/pkg/jina"
	"github.com/clearbound/enrich-cli/pkg/perplexity"
)

// appEnv holds the wired pipeline and its store for command handlers.
type appEnv struct {
	Store        store.Store
	Orchestrator *enrich.Orchestrator
	Extractor    *extract.Extractor
}

// Close releases the environment's resources.
func (e *appEnv) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv wires API clients into the orchestrator.
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	jinaClient := jina.NewClient(c.Jina.Key,
		jina.WithBaseURL(c.Jina.BaseURL),
		jina.WithSearchBaseURL(c.Jina.SearchBaseURL),
	)
	var firecrawlClient firecrawl.Client
	if c.Firecrawl.Key != "" {
		firecrawlClient = firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
	}
	anthropicClient := anthropic.NewClient(c.Anthropic.Key)

	var peopleClient perplexity.Client
	if c.Perplexity.Key != "" {
		peopleClient = perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
	}
	var placesClient google.Client
	if c.Google.Key != "" {
		placesClient = google.NewClient(c.Google.Key, google.WithBaseURL(c.Google.BaseURL))
	}

	collector := collect.New(c.Collect, jinaClient, firecrawlClient)
	extractor := extract.New(c.Anthropic, c.Extract, anthropicClient, schema.MustLoad())
	reconciler := reconcile.New(c.Reconcile)
	evaluator := competitor.NewEvaluator(c.Competitor, collector, extractor, placesClient)

	return &appEnv{
		Store:        st,
		Orchestrator: enrich.New(c, collector, extractor, reconciler, evaluator, peopleClient),
		Extractor:    extractor,
	}, nil
}
