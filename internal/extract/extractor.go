// Package extract turns raw evidence text into schema-validated field
// candidates using an LLM. Each evidence item is processed independently so
// downstream reconciliation can count agreement across sources.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/schema"
	"github.com/clearbound/enrich-cli/pkg/anthropic"
)

// Extractor extracts typed field candidates from evidence items.
type Extractor struct {
	ai           anthropic.Client
	reg          *schema.Registry
	model        string
	maxTokens    int64
	promptBudget int

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// New creates an Extractor.
func New(aiCfg config.AnthropicConfig, exCfg config.ExtractConfig, ai anthropic.Client, reg *schema.Registry) *Extractor {
	maxTokens := aiCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Extractor{
		ai:           ai,
		reg:          reg,
		model:        aiCfg.Model,
		maxTokens:    maxTokens,
		promptBudget: exCfg.PromptBudget,
	}
}

// Usage returns accumulated token usage across all calls so far.
func (e *Extractor) Usage() anthropic.TokenUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

func (e *Extractor) addUsage(u anthropic.TokenUsage) {
	e.mu.Lock()
	e.usage.Add(u)
	e.mu.Unlock()
}

// Extract runs one extraction pass per evidence item for the target fields
// and returns every candidate that survives schema validation. A failed call
// drops that item's candidates and moves on; only context cancellation stops
// the pass early.
func (e *Extractor) Extract(ctx context.Context, company string, items []model.EvidenceItem, fields []string) ([]model.FieldCandidate, error) {
	var out []model.FieldCandidate
	for i := range items {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		cands, err := e.extractOne(ctx, company, &items[i], fields)
		if err != nil {
			zap.L().Warn("extract: evidence item skipped",
				zap.String("url", items[i].SourceURL),
				zap.Error(err),
			)
			continue
		}
		out = append(out, cands...)
	}
	return out, nil
}

func (e *Extractor) extractOne(ctx context.Context, company string, item *model.EvidenceItem, fields []string) ([]model.FieldCandidate, error) {
	var hints strings.Builder
	for _, f := range fields {
		spec := e.reg.ByKey(f)
		if spec == nil {
			continue
		}
		fmt.Fprintf(&hints, "- %s: %s\n", spec.Key, spec.PromptHint)
	}
	if hints.Len() == 0 {
		return nil, eris.New("extract: no known fields requested")
	}

	prompt := fmt.Sprintf(fieldPrompt, company, hints.String(), item.SourceURL, e.clip(item.RawText))
	temp := 0.0
	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		System:      anthropic.BuildCachedSystemBlocks(systemText),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: field extraction call")
	}
	e.addUsage(resp.Usage)

	var answers map[string]fieldAnswer
	if err := unmarshalLoose(resp.Text(), &answers); err != nil {
		return nil, eris.Wrap(err, "extract: parse answer")
	}

	now := time.Now().UTC()
	var out []model.FieldCandidate
	for _, f := range fields {
		spec := e.reg.ByKey(f)
		ans, ok := answers[f]
		if spec == nil || !ok {
			continue
		}
		for _, raw := range ans.rawValues(spec.Kind) {
			value, valid := spec.Validate(raw)
			if !valid {
				continue
			}
			conf := e.confidence(ans.Confidence, value, item)
			if spec.Kind == schema.KindPerson && credibleHost(item.SourceURL) {
				conf = clamp01(conf + 0.05)
			}
			out = append(out, model.FieldCandidate{
				Field:       f,
				Value:       value,
				Confidence:  conf,
				Evidence:    item,
				ExtractedAt: now,
			})
		}
	}
	return out, nil
}

// CompanyNames extracts provider company names from evidence gathered for a
// single product or service term. Names are returned in mention order,
// duplicates included; the caller owns dedupe and counting.
func (e *Extractor) CompanyNames(ctx context.Context, term string, items []model.EvidenceItem) ([]string, error) {
	var out []string
	for i := range items {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		prompt := fmt.Sprintf(namesPrompt, term, e.clip(items[i].RawText))
		temp := 0.0
		resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:       e.model,
			MaxTokens:   e.maxTokens,
			System:      anthropic.BuildCachedSystemBlocks(namesSystemText),
			Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
			Temperature: &temp,
		})
		if err != nil {
			zap.L().Warn("extract: company names call failed",
				zap.String("url", items[i].SourceURL),
				zap.Error(err),
			)
			continue
		}
		e.addUsage(resp.Usage)

		var names []string
		if err := unmarshalLoose(resp.Text(), &names); err != nil {
			zap.L().Debug("extract: unparseable names answer", zap.Error(err))
			continue
		}
		for _, n := range names {
			n = strings.Join(strings.Fields(n), " ")
			if n != "" && !schema.IsNotFound(n) {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

// confidence blends the model's self-reported confidence with the source
// kind and a verbatim-presence check on the evidence text.
func (e *Extractor) confidence(selfReport float64, value string, item *model.EvidenceItem) float64 {
	conf := clamp01(selfReport)
	switch item.SourceKind {
	case model.SourceScrape:
		// full weight
	case model.SourceSocial:
		conf *= 0.9
	default:
		conf *= 0.8
	}
	if len(value) >= 4 && strings.Contains(strings.ToLower(item.RawText), strings.ToLower(value)) {
		conf = clamp01(conf + 0.1)
	}
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// credibleDomains are sources whose people mentions corroborate a name.
var credibleDomains = map[string]bool{
	"linkedin.com":   true,
	"twitter.com":    true,
	"x.com":          true,
	"crunchbase.com": true,
	"bloomberg.com":  true,
	"forbes.com":     true,
	"techcrunch.com": true,
	"medium.com":     true,
}

func credibleHost(rawURL string) bool {
	return credibleDomains[model.NormalizeDomain(rawURL)]
}

func (e *Extractor) clip(s string) string {
	if e.promptBudget > 0 && len(s) > e.promptBudget {
		return s[:e.promptBudget]
	}
	return s
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// fieldAnswer is one field's entry in the model's JSON answer. Scalar fields
// use "value"; set and link fields use "values".
type fieldAnswer struct {
	Value      any             `json:"value"`
	Values     json.RawMessage `json:"values"`
	Confidence float64         `json:"confidence"`
}

// rawValues flattens the answer into raw strings for schema validation.
// Links are encoded as "platform=url".
func (a fieldAnswer) rawValues(kind schema.Kind) []string {
	switch kind {
	case schema.KindSet:
		var list []string
		if json.Unmarshal(a.Values, &list) == nil {
			return list
		}
		return nil
	case schema.KindLinks:
		var links map[string]string
		if json.Unmarshal(a.Values, &links) != nil {
			return nil
		}
		platforms := make([]string, 0, len(links))
		for p := range links {
			platforms = append(platforms, p)
		}
		sort.Strings(platforms)
		out := make([]string, 0, len(links))
		for _, p := range platforms {
			out = append(out, p+"="+links[p])
		}
		return out
	default:
		switch v := a.Value.(type) {
		case string:
			return []string{v}
		case float64:
			return []string{strconv.FormatFloat(v, 'f', -1, 64)}
		default:
			return nil
		}
	}
}

// unmarshalLoose parses JSON out of an LLM answer that may be wrapped in
// markdown fences or surrounding prose.
func unmarshalLoose(text string, v any) error {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	s = strings.TrimSpace(s)
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return eris.New("extract: answer contains no JSON")
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return eris.New("extract: answer contains unterminated JSON")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return eris.Wrap(err, "extract: decode answer JSON")
	}
	return nil
}
