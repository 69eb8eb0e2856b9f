// Package competitor implements the two-phase competitor evaluator:
// candidate generation from product-term searches, then business
// verification and website resolution. The evaluator degrades instead of
// failing; an empty competitor list is a valid outcome.
package competitor

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/clearbound/enrich-cli/internal/collect"
	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/pkg/google"
)

// finalCount is how many competitors the profile carries at most.
const finalCount = 3

// evidenceCollector is the slice of the collector the evaluator needs.
type evidenceCollector interface {
	Collect(ctx context.Context, task collect.SearchTask) ([]model.EvidenceItem, error)
}

// nameExtractor extracts provider company names from term evidence.
type nameExtractor interface {
	CompanyNames(ctx context.Context, term string, items []model.EvidenceItem) ([]string, error)
}

// Evaluator generates, scores, and verifies competitor candidates.
type Evaluator struct {
	collector evidenceCollector
	extractor nameExtractor
	places    google.Client
	cfg       config.CompetitorConfig
}

// NewEvaluator creates an Evaluator. The places client may be nil; candidates
// are then verified by the targeted website search alone.
func NewEvaluator(cfg config.CompetitorConfig, collector evidenceCollector, extractor nameExtractor, places google.Client) *Evaluator {
	return &Evaluator{
		collector: collector,
		extractor: extractor,
		places:    places,
		cfg:       cfg,
	}
}

// candidate accumulates generation-phase signals for one company name.
type candidate struct {
	name     string
	mentions int
	terms    map[string]bool // product terms the name surfaced for
}

// Evaluate returns up to three competitors of the profiled company,
// verified ones first. It never returns an error; anything that goes wrong
// shrinks the result instead.
func (e *Evaluator) Evaluate(ctx context.Context, req model.EnrichmentRequest, profile *model.CompanyProfile) []model.CompetitorCandidate {
	company, _ := profile.Known(model.FieldName)
	if company == "" {
		company = req.Name
	}

	terms := e.productTerms(profile)
	generated := e.generate(ctx, company, terms)
	if len(generated) == 0 {
		return []model.CompetitorCandidate{}
	}

	scored := e.score(generated, len(terms))
	verified := e.verify(ctx, req, profile, scored)
	return pick(verified)
}

// productTerms selects up to the configured number of product terms to
// search on, longest first since longer terms tend to be more specific.
func (e *Evaluator) productTerms(profile *model.CompanyProfile) []string {
	terms := profile.KnownSet(model.FieldProductsServices)
	if len(terms) == 0 {
		return nil
	}
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	if max := e.cfg.MaxProductTerms; max > 0 && len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// generate runs one search per product term and tallies extracted company
// names. With no product terms it falls back to a direct competitor query.
func (e *Evaluator) generate(ctx context.Context, company string, terms []string) map[string]*candidate {
	queries := make(map[string]string, len(terms)) // query -> term label
	for _, term := range terms {
		queries[fmt.Sprintf("companies offering %s", term)] = term
	}
	if len(queries) == 0 && company != "" {
		queries[fmt.Sprintf("industry competitors of %s", company)] = "industry"
	}

	seed := normalizeCompanyName(company)
	byName := make(map[string]*candidate)
	for query, term := range queries {
		if ctx.Err() != nil {
			break
		}
		items, err := e.collector.Collect(ctx, collect.SearchTask{Query: query, MaxResults: 5})
		if err != nil || len(items) == 0 {
			continue
		}
		names, err := e.extractor.CompanyNames(ctx, term, items)
		if err != nil {
			zap.L().Warn("competitor: name extraction degraded",
				zap.String("term", term),
				zap.Error(err),
			)
			continue
		}
		for _, name := range names {
			key := normalizeCompanyName(name)
			if key == "" || key == seed {
				continue
			}
			c, ok := byName[key]
			if !ok {
				c = &candidate{name: name, terms: make(map[string]bool)}
				byName[key] = c
			}
			c.mentions++
			c.terms[term] = true
		}
	}
	return byName
}

// score ranks candidates by normalized mention count blended with the share
// of product terms each candidate surfaced for.
func (e *Evaluator) score(byName map[string]*candidate, totalTerms int) []model.CompetitorCandidate {
	maxMentions := 0
	for _, c := range byName {
		if c.mentions > maxMentions {
			maxMentions = c.mentions
		}
	}
	if totalTerms < 1 {
		totalTerms = 1
	}

	out := make([]model.CompetitorCandidate, 0, len(byName))
	for _, c := range byName {
		mentionShare := float64(c.mentions) / float64(maxMentions)
		termShare := float64(len(c.terms)) / float64(totalTerms)
		termList := make([]string, 0, len(c.terms))
		for t := range c.terms {
			termList = append(termList, t)
		}
		sort.Strings(termList)
		out = append(out, model.CompetitorCandidate{
			Name:            c.name,
			SimilarityScore: 0.6*mentionShare + 0.4*termShare,
			Rationale:       fmt.Sprintf("mentioned %d time(s) for: %s", c.mentions, strings.Join(termList, ", ")),
			Mentions:        c.mentions,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// verify confirms the strongest candidates are operating businesses and
// resolves their websites, dropping any that turn out to be the profiled
// company itself.
func (e *Evaluator) verify(ctx context.Context, req model.EnrichmentRequest, profile *model.CompanyProfile, cands []model.CompetitorCandidate) []model.CompetitorCandidate {
	if max := e.cfg.MaxVerify; max > 0 && len(cands) > max {
		cands = cands[:max]
	}

	seedDomain := req.Domain()
	if site, ok := profile.Known(model.FieldWebsite); ok && seedDomain == "" {
		seedDomain = model.NormalizeDomain(site)
	}

	out := make([]model.CompetitorCandidate, 0, len(cands))
	for _, c := range cands {
		if ctx.Err() != nil {
			break
		}
		if e.places != nil {
			if place := e.lookup(ctx, c.Name); place != nil {
				c.Verified = true
				c.Website = place.WebsiteURI
			}
		}
		if c.Website == "" {
			c.Website = e.resolveWebsite(ctx, c.Name)
			// Without a directory client, a distinct resolved website is
			// the verification signal itself.
			if e.places == nil && c.Website != "" {
				c.Verified = true
			}
		}
		if seedDomain != "" && model.NormalizeDomain(c.Website) == seedDomain {
			continue
		}
		out = append(out, c)
	}
	return out
}

// lookup finds an operational Places match for a candidate name.
func (e *Evaluator) lookup(ctx context.Context, name string) *google.Place {
	resp, err := e.places.TextSearch(ctx, name)
	if err != nil {
		zap.L().Debug("competitor: places lookup failed",
			zap.String("name", name),
			zap.Error(err),
		)
		return nil
	}
	for i := range resp.Places {
		if resp.Places[i].Operational() {
			return &resp.Places[i]
		}
	}
	return nil
}

// resolveWebsite falls back to a web search for the candidate's site.
func (e *Evaluator) resolveWebsite(ctx context.Context, name string) string {
	items, err := e.collector.Collect(ctx, collect.SearchTask{
		Query:      fmt.Sprintf("%s official website", name),
		MaxResults: 3,
	})
	if err != nil || len(items) == 0 {
		return ""
	}
	return items[0].SourceURL
}

// pick selects the final list: verified candidates first in score order,
// then flagged unverified fallbacks if fewer than three verified exist.
func pick(cands []model.CompetitorCandidate) []model.CompetitorCandidate {
	out := make([]model.CompetitorCandidate, 0, finalCount)
	for _, c := range cands {
		if c.Verified && len(out) < finalCount {
			out = append(out, c)
		}
	}
	for _, c := range cands {
		if len(out) >= finalCount {
			break
		}
		if !c.Verified {
			c.Rationale = strings.TrimSpace(c.Rationale + "; unverified")
			out = append(out, c)
		}
	}
	return out
}

var legalSuffixRe = regexp.MustCompile(`(?i)[,.]?\s+(inc|llc|ltd|corp|corporation|co|gmbh|sa|plc|ag|bv)\.?$`)

// normalizeCompanyName produces the dedupe key for a company name: legal
// suffix stripped, punctuation removed, case folded.
func normalizeCompanyName(name string) string {
	n := strings.TrimSpace(name)
	n = legalSuffixRe.ReplaceAllString(n, "")
	n = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '\'', '"':
			return -1
		}
		return r
	}, n)
	return strings.ToLower(strings.Join(strings.Fields(n), " "))
}
