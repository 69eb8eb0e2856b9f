// Package enrich hosts the run orchestrator: a linear state machine that
// drives collect, extract, reconcile, competitor evaluation, and assembly.
// Every accepted run terminates in done; upstream failures degrade stages
// rather than abort the run.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clearbound/enrich-cli/internal/collect"
	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/reconcile"
	"github.com/clearbound/enrich-cli/internal/schema"
	"github.com/clearbound/enrich-cli/pkg/perplexity"
)

// evidenceCollector is the collector surface the orchestrator drives.
type evidenceCollector interface {
	Collect(ctx context.Context, task collect.SearchTask) ([]model.EvidenceItem, error)
	Fetch(ctx context.Context, targetURL, query string) (*model.EvidenceItem, error)
}

// fieldExtractor turns evidence into schema-validated candidates.
type fieldExtractor interface {
	Extract(ctx context.Context, company string, items []model.EvidenceItem, fields []string) ([]model.FieldCandidate, error)
}

// competitorEvaluator produces the final competitor list.
type competitorEvaluator interface {
	Evaluate(ctx context.Context, req model.EnrichmentRequest, profile *model.CompanyProfile) []model.CompetitorCandidate
}

// Orchestrator executes enrichment runs.
type Orchestrator struct {
	collector  evidenceCollector
	extractor  fieldExtractor
	reconciler *reconcile.Reconciler
	evaluator  competitorEvaluator
	people     perplexity.Client // optional answer-engine cross-check
	reg        *schema.Registry
	cfg        *config.Config
}

// New creates an Orchestrator. The people client and evaluator may be nil;
// the corresponding stages then skip or degrade.
func New(cfg *config.Config, collector evidenceCollector, extractor fieldExtractor, reconciler *reconcile.Reconciler, evaluator competitorEvaluator, people perplexity.Client) *Orchestrator {
	return &Orchestrator{
		collector:  collector,
		extractor:  extractor,
		reconciler: reconciler,
		evaluator:  evaluator,
		people:     people,
		reg:        schema.MustLoad(),
		cfg:        cfg,
	}
}

// groupEvidence is the fan-out result of the collect stage, keyed by group.
type groupEvidence struct {
	mu      sync.Mutex
	byGroup map[string][]model.EvidenceItem
	total   int
}

func (g *groupEvidence) add(group string, items []model.EvidenceItem) {
	if len(items) == 0 {
		return
	}
	g.mu.Lock()
	g.byGroup[group] = append(g.byGroup[group], items...)
	g.total += len(items)
	g.mu.Unlock()
}

// Run executes one enrichment run to completion. The only outright failure
// is an invalid request; everything else ends in a done run whose profile
// may carry unknown fields. The run is bounded by the configured timeout,
// after which remaining stages assemble from whatever has been produced.
func (o *Orchestrator) Run(ctx context.Context, req model.EnrichmentRequest) (*model.Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Run.Timeout())
	defer cancel()

	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    model.RunStatusPending,
		Profile:   model.NewCompanyProfile(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("company", req.Name))
	log.Info("run started")

	company, website := o.resolveSeed(ctx, run)

	groups := fieldGroups(o.cfg.Collect.MaxResults, o.cfg.Collect.FollowTop)

	evidence := o.trackStage(run, "collect", model.RunStatusCollecting, func() (model.StageStatus, map[string]any, any) {
		ev := o.collectStage(ctx, company, website, groups)
		meta := map[string]any{"evidence_count": ev.total}
		if ev.total == 0 {
			return model.StageStatusDegraded, meta, ev
		}
		return model.StageStatusComplete, meta, ev
	}).(*groupEvidence)

	candidates := o.trackStage(run, "extract", model.RunStatusExtracting, func() (model.StageStatus, map[string]any, any) {
		cands := o.extractStage(ctx, company, groups, evidence)
		cands = append(cands, o.peopleCrossCheck(ctx, company)...)
		meta := map[string]any{"candidate_count": len(cands)}
		if len(cands) == 0 {
			if evidence.total == 0 {
				return model.StageStatusSkipped, meta, cands
			}
			return model.StageStatusDegraded, meta, cands
		}
		return model.StageStatusComplete, meta, cands
	}).([]model.FieldCandidate)

	o.trackStage(run, "reconcile", model.RunStatusReconciling, func() (model.StageStatus, map[string]any, any) {
		o.reconciler.Apply(run.Profile, candidates)
		known := 0
		for _, rf := range run.Profile.Fields {
			if !rf.Unknown {
				known++
			}
		}
		if len(candidates) == 0 {
			return model.StageStatusSkipped, map[string]any{"known_fields": known}, nil
		}
		return model.StageStatusComplete, map[string]any{"known_fields": known}, nil
	})

	o.trackStage(run, "competitors", model.RunStatusEvaluating, func() (model.StageStatus, map[string]any, any) {
		if o.evaluator == nil {
			return model.StageStatusSkipped, nil, nil
		}
		run.Profile.Competitors = o.evaluator.Evaluate(ctx, req, run.Profile)
		meta := map[string]any{"competitor_count": len(run.Profile.Competitors)}
		if len(run.Profile.Competitors) == 0 {
			return model.StageStatusDegraded, meta, nil
		}
		return model.StageStatusComplete, meta, nil
	})

	o.trackStage(run, "assemble", model.RunStatusAssembling, func() (model.StageStatus, map[string]any, any) {
		o.assemble(run, company, website)
		return model.StageStatusComplete, nil, nil
	})

	run.Status = model.RunStatusDone
	run.UpdatedAt = time.Now().UTC()
	log.Info("run finished",
		zap.Int("evidence", evidence.total),
		zap.Int("candidates", len(candidates)),
		zap.Int("competitors", len(run.Profile.Competitors)),
	)
	return run, nil
}

// trackStage advances the state machine, times the stage, and appends its
// audit record. Stage funcs never return an error; they report degradation
// through the stage status.
func (o *Orchestrator) trackStage(run *model.Run, name string, status model.RunStatus, fn func() (model.StageStatus, map[string]any, any)) any {
	run.Status = status
	run.UpdatedAt = time.Now().UTC()
	start := time.Now()

	stageStatus, meta, out := fn()

	run.Stages = append(run.Stages, model.StageResult{
		Name:       name,
		Status:     stageStatus,
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   meta,
	})
	if stageStatus != model.StageStatusComplete {
		zap.L().Warn("stage did not complete cleanly",
			zap.String("run_id", run.ID),
			zap.String("stage", name),
			zap.String("status", string(stageStatus)),
		)
	}
	return out
}

// resolveSeed determines the company label and website used to drive
// collection. A missing website is resolved through a search for the
// official site, skipping social-platform hits.
func (o *Orchestrator) resolveSeed(ctx context.Context, run *model.Run) (company, website string) {
	company = strings.TrimSpace(run.Request.Name)
	website = strings.TrimSpace(run.Request.Website)
	if company == "" {
		company = model.NormalizeDomain(website)
	}
	if website != "" || company == "" {
		return company, website
	}

	items, err := o.collector.Collect(ctx, collect.SearchTask{
		Query:      fmt.Sprintf("%s official website", company),
		MaxResults: 5,
	})
	if err != nil || len(items) == 0 {
		return company, ""
	}
	for _, item := range items {
		if schema.PlatformFor(item.SourceURL) == "" {
			return company, item.SourceURL
		}
	}
	return company, ""
}

// collectStage fans out per-group search tasks plus a homepage fetch. The
// homepage is shared evidence: it feeds every group's extraction.
func (o *Orchestrator) collectStage(ctx context.Context, company, website string, groups []fieldGroup) *groupEvidence {
	ev := &groupEvidence{byGroup: make(map[string][]model.EvidenceItem, len(groups))}

	var homepage *model.EvidenceItem
	if website != "" {
		page, err := o.collector.Fetch(ctx, website, company+" homepage")
		if err != nil {
			zap.L().Warn("homepage fetch failed", zap.String("url", website), zap.Error(err))
		} else {
			homepage = page
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, task := range group.tasks(company) {
				items, err := o.collector.Collect(gctx, task)
				if err != nil {
					zap.L().Warn("group collect failed",
						zap.String("group", group.name),
						zap.String("query", task.Query),
						zap.Error(err),
					)
					continue
				}
				ev.add(group.name, items)
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines only log

	if homepage != nil {
		for _, group := range groups {
			ev.add(group.name, []model.EvidenceItem{*homepage})
		}
	}
	return ev
}

// extractStage fans out extraction per field group and fans the candidates
// back in. A group with no evidence contributes nothing.
func (o *Orchestrator) extractStage(ctx context.Context, company string, groups []fieldGroup, ev *groupEvidence) []model.FieldCandidate {
	var mu sync.Mutex
	var all []model.FieldCandidate

	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		group := group
		items := ev.byGroup[group.name]
		if len(items) == 0 {
			continue
		}
		g.Go(func() error {
			cands, err := o.extractor.Extract(gctx, company, items, group.fields)
			if err != nil {
				zap.L().Warn("group extract degraded",
					zap.String("group", group.name),
					zap.Error(err),
				)
			}
			mu.Lock()
			all = append(all, cands...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck
	return all
}

// peopleCrossCheck asks the answer engine for each executive role and adds
// the answers as extra candidates. Agreement with extracted candidates then
// lifts their reconciled confidence.
func (o *Orchestrator) peopleCrossCheck(ctx context.Context, company string) []model.FieldCandidate {
	if o.people == nil || company == "" {
		return nil
	}

	roles := map[string]string{
		model.FieldCEO: "CEO",
		model.FieldCTO: "CTO",
		model.FieldCFO: "CFO",
	}
	spec := o.reg.ByKey(model.FieldCEO)

	var out []model.FieldCandidate
	for _, field := range []string{model.FieldCEO, model.FieldCTO, model.FieldCFO} {
		if ctx.Err() != nil {
			break
		}
		temp := 0.0
		resp, err := o.people.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{{
				Role:    "user",
				Content: fmt.Sprintf("Who is the current %s of %s? Reply with only the person's full name, or \"unknown\".", roles[field], company),
			}},
			Temperature: &temp,
		})
		if err != nil {
			zap.L().Debug("people cross-check failed", zap.String("field", field), zap.Error(err))
			continue
		}
		name, ok := spec.Validate(resp.Answer())
		if !ok {
			continue
		}
		source := "https://www.perplexity.ai"
		if len(resp.Citations) > 0 {
			source = resp.Citations[0]
		}
		out = append(out, model.FieldCandidate{
			Field:      field,
			Value:      name,
			Confidence: 0.6,
			Evidence: &model.EvidenceItem{
				SourceKind:  model.SourceSearch,
				SourceURL:   source,
				RawText:     resp.Answer(),
				Query:       roles[field],
				RetrievedAt: time.Now().UTC(),
			},
			ExtractedAt: time.Now().UTC(),
		})
	}
	return out
}

// assemble backfills the identity fields the pipeline could not resolve
// from the request itself, so the output always names its subject.
func (o *Orchestrator) assemble(run *model.Run, company, website string) {
	if _, known := run.Profile.Known(model.FieldName); !known && company != "" {
		run.Profile.Set(model.ReconciledField{Field: model.FieldName, Value: company, Confidence: 0.5})
	}
	if _, known := run.Profile.Known(model.FieldWebsite); !known && website != "" {
		if canon, ok := o.reg.ByKey(model.FieldWebsite).Validate(website); ok {
			run.Profile.Set(model.ReconciledField{Field: model.FieldWebsite, Value: canon, Confidence: 0.5})
		}
	}
}
