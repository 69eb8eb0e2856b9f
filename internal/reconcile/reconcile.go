// Package reconcile merges per-source field candidates into exactly one
// resolved value per field. Resolution is deterministic: the same candidate
// set always yields the same result regardless of arrival order.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
)

// Reconciler resolves field candidates against configured thresholds.
type Reconciler struct {
	acceptThreshold float64
	agreementFloor  float64
	folder          cases.Caser
}

// New creates a Reconciler.
func New(cfg config.ReconcileConfig) *Reconciler {
	return &Reconciler{
		acceptThreshold: cfg.AcceptThreshold,
		agreementFloor:  cfg.AgreementFloor,
		folder:          cases.Fold(),
	}
}

// Apply resolves every field that has candidates and records the result on
// the profile. Fields without candidates keep their unknown resolution.
func (r *Reconciler) Apply(profile *model.CompanyProfile, cands []model.FieldCandidate) {
	byField := make(map[string][]model.FieldCandidate)
	for _, c := range cands {
		byField[c.Field] = append(byField[c.Field], c)
	}
	for _, field := range model.ProfileFields {
		if group, ok := byField[field]; ok {
			profile.Set(r.Resolve(field, group))
		}
	}
}

// Resolve merges all candidates for one field into its single resolution.
// An empty or entirely below-threshold candidate set resolves to unknown.
func (r *Reconciler) Resolve(field string, cands []model.FieldCandidate) model.ReconciledField {
	groups := r.group(cands)
	if len(groups) == 0 {
		return model.UnknownField(field)
	}

	if model.SetValuedFields[field] {
		return r.resolveSet(field, groups)
	}

	sort.Slice(groups, func(i, j int) bool { return groupLess(groups[j], groups[i]) })
	best := groups[0]
	if best.total < r.acceptThreshold {
		return model.UnknownField(field)
	}
	return model.ReconciledField{
		Field:      field,
		Value:      best.value,
		Confidence: best.confidence,
		Supporting: best.refs(),
	}
}

// resolveSet unions every accepted value group. The reported confidence is
// that of the strongest member.
func (r *Reconciler) resolveSet(field string, groups []*valueGroup) model.ReconciledField {
	accepted := groups[:0]
	for _, g := range groups {
		if g.total >= r.acceptThreshold {
			accepted = append(accepted, g)
		}
	}
	if len(accepted) == 0 {
		return model.UnknownField(field)
	}
	sort.Slice(accepted, func(i, j int) bool { return groupLess(accepted[j], accepted[i]) })

	values := make([]string, 0, len(accepted))
	var refs []model.EvidenceRef
	seen := make(map[string]bool)
	var conf float64
	for _, g := range accepted {
		values = append(values, g.value)
		if g.confidence > conf {
			conf = g.confidence
		}
		for _, ref := range g.refs() {
			if !seen[ref.SourceURL] {
				seen[ref.SourceURL] = true
				refs = append(refs, ref)
			}
		}
	}
	return model.ReconciledField{
		Field:      field,
		Values:     values,
		Confidence: conf,
		Supporting: refs,
	}
}

// valueGroup collects all candidates whose normalized values are identical.
// total (the sum of member confidences) selects the winning group; the
// reported confidence stays bounded via independent combination.
type valueGroup struct {
	value      string // representative surface form
	bestMember float64
	total      float64 // aggregate for winner selection
	confidence float64
	priority   int       // best source priority among members
	latest     time.Time // most recent evidence among members
	members    []model.FieldCandidate
}

func (g *valueGroup) refs() []model.EvidenceRef {
	var refs []model.EvidenceRef
	seen := make(map[string]bool)
	for _, m := range g.members {
		if m.Evidence == nil || seen[m.Evidence.SourceURL] {
			continue
		}
		seen[m.Evidence.SourceURL] = true
		refs = append(refs, m.Evidence.Ref())
	}
	return refs
}

// group buckets candidates by normalized value and scores each bucket. The
// winner-selection aggregate is the plain sum of member confidences; the
// reported confidence combines independently, 1 - prod(1 - c_i), raised to
// the agreement floor when two or more distinct sources carry the value.
func (r *Reconciler) group(cands []model.FieldCandidate) []*valueGroup {
	byNorm := make(map[string]*valueGroup)
	var order []string
	for _, c := range cands {
		key := r.normalize(c.Value)
		if key == "" {
			continue
		}
		g, ok := byNorm[key]
		if !ok {
			g = &valueGroup{value: c.Value, bestMember: c.Confidence}
			byNorm[key] = g
			order = append(order, key)
		}
		g.members = append(g.members, c)
		// The highest-confidence member supplies the surface form.
		if c.Confidence > g.bestMember {
			g.bestMember = c.Confidence
			g.value = c.Value
		}
		if c.Evidence != nil {
			if p := c.Evidence.SourceKind.Priority(); p > g.priority {
				g.priority = p
			}
			if c.Evidence.RetrievedAt.After(g.latest) {
				g.latest = c.Evidence.RetrievedAt
			}
		}
	}

	groups := make([]*valueGroup, 0, len(byNorm))
	for _, key := range order {
		g := byNorm[key]
		inverse := 1.0
		sources := make(map[string]bool)
		for _, m := range g.members {
			c := clamp01(m.Confidence)
			g.total += c
			inverse *= 1 - c
			if m.Evidence != nil {
				sources[m.Evidence.SourceURL] = true
			}
		}
		g.confidence = 1 - inverse
		if len(sources) >= 2 && g.confidence < r.agreementFloor {
			g.confidence = r.agreementFloor
		}
		groups = append(groups, g)
	}
	return groups
}

// groupLess orders groups ascending by strength: summed confidence, then
// evidence recency, then source priority, then value for full determinism.
func groupLess(a, b *valueGroup) bool {
	if a.total != b.total {
		return a.total < b.total
	}
	if !a.latest.Equal(b.latest) {
		return a.latest.Before(b.latest)
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.value > b.value
}

// normalize produces the comparison key for a candidate value: NFKC
// normalized, case folded, whitespace collapsed.
func (r *Reconciler) normalize(v string) string {
	v = norm.NFKC.String(v)
	v = r.folder.String(v)
	return strings.Join(strings.Fields(v), " ")
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
