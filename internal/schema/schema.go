// Package schema defines the typed value schema for every profile field.
// Extracted values are validated and normalized here before they may become
// candidates; anything that fails its schema is discarded, never surfaced
// as an error.
package schema

import (
	_ "embed"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed fields.yaml
var fieldsYAML []byte

// Kind selects the validation/normalization rules for a field.
type Kind string

const (
	KindText   Kind = "text"
	KindURL    Kind = "url"
	KindYear   Kind = "year"
	KindCount  Kind = "count"
	KindMoney  Kind = "money"
	KindPerson Kind = "person"
	KindSet    Kind = "set"
	KindLinks  Kind = "links"
)

// FieldSpec describes one profile field.
type FieldSpec struct {
	Key        string `yaml:"key"`
	Kind       Kind   `yaml:"kind"`
	MaxLength  int    `yaml:"max_length"`
	PromptHint string `yaml:"prompt_hint"`
}

// Registry is an indexed collection of field specs.
type Registry struct {
	Specs []FieldSpec
	byKey map[string]*FieldSpec
}

type registryFile struct {
	Fields []FieldSpec `yaml:"fields"`
}

// Load parses the embedded field registry.
func Load() (*Registry, error) {
	var rf registryFile
	if err := yaml.Unmarshal(fieldsYAML, &rf); err != nil {
		return nil, eris.Wrap(err, "schema: parse field registry")
	}
	if len(rf.Fields) == 0 {
		return nil, eris.New("schema: field registry is empty")
	}
	r := &Registry{
		Specs: rf.Fields,
		byKey: make(map[string]*FieldSpec, len(rf.Fields)),
	}
	for i := range r.Specs {
		s := &r.Specs[i]
		if s.Key == "" || s.Kind == "" {
			return nil, eris.Errorf("schema: field %d missing key or kind", i)
		}
		r.byKey[s.Key] = s
	}
	return r, nil
}

// MustLoad is Load for initialization paths where the embedded registry is
// known to be valid.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// ByKey returns the spec for a field key, or nil.
func (r *Registry) ByKey(key string) *FieldSpec {
	return r.byKey[key]
}

// Keys returns all field keys in registry order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.Specs))
	for i, s := range r.Specs {
		keys[i] = s.Key
	}
	return keys
}

// notFoundMarkers are LLM responses that mean "no value on this evidence".
var notFoundMarkers = map[string]bool{
	"": true, "not found": true, "unknown": true, "null": true, "none": true, "n/a": true,
}

// IsNotFound reports whether a raw extracted string is an explicit
// no-value marker rather than a candidate value.
func IsNotFound(raw string) bool {
	return notFoundMarkers[strings.ToLower(strings.TrimSpace(raw))]
}

// SocialPlatforms is the whitelist of platforms accepted in social_links,
// keyed by platform name with the hosts that identify it.
var SocialPlatforms = map[string][]string{
	"linkedin":  {"linkedin.com"},
	"twitter":   {"twitter.com", "x.com"},
	"facebook":  {"facebook.com"},
	"instagram": {"instagram.com"},
	"youtube":   {"youtube.com"},
	"github":    {"github.com"},
}

// PlatformFor returns the whitelisted platform a URL's host belongs to, or
// "". Matching is exact or on a dot boundary so subdomains count but hosts
// that merely contain a platform name (netflix.com, wix.com) do not.
func PlatformFor(rawURL string) string {
	host := hostOf(rawURL)
	if host == "" {
		return ""
	}
	for platform, hosts := range SocialPlatforms {
		for _, h := range hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return platform
			}
		}
	}
	return ""
}

// hostOf extracts the lowercased host from a URL or bare domain, stripping
// any port and a leading "www.".
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

var (
	rangeRe = regexp.MustCompile(`^(\d[\d,.]*)\s*([kmb])?\s*(?:-|to)\s*(\d[\d,.]*)\s*([kmb])?$`)
	exactRe = regexp.MustCompile(`^(\d[\d,.]*)\s*([kmb])?\+?$`)
)

// Validate checks a raw extracted value against the spec and returns the
// canonical normalized form. ok=false means the value must be discarded.
func (s *FieldSpec) Validate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if IsNotFound(v) {
		return "", false
	}

	switch s.Kind {
	case KindText, KindPerson:
		v = strings.Join(strings.Fields(v), " ")
		if v == "" {
			return "", false
		}
		if s.MaxLength > 0 && len(v) > s.MaxLength {
			v = v[:s.MaxLength]
		}
		return v, true

	case KindURL:
		return canonicalURL(v)

	case KindYear:
		year, err := strconv.Atoi(v)
		if err != nil || len(v) != 4 {
			return "", false
		}
		if year < 1600 || year > time.Now().Year() {
			return "", false
		}
		return v, true

	case KindCount:
		return normalizeQuantity(v, "")

	case KindMoney:
		return normalizeQuantity(v, "$")

	case KindSet:
		v = strings.Join(strings.Fields(v), " ")
		if v == "" || len(v) > 120 {
			return "", false
		}
		return v, true

	case KindLinks:
		// Encoded as "platform=url"; the platform must be whitelisted and
		// must match the URL host.
		platform, link, found := strings.Cut(v, "=")
		if !found {
			return "", false
		}
		platform = strings.ToLower(strings.TrimSpace(platform))
		canon, ok := canonicalURL(strings.TrimSpace(link))
		if !ok {
			return "", false
		}
		if PlatformFor(canon) != platform {
			return "", false
		}
		return platform + "=" + canon, true

	default:
		return "", false
	}
}

// canonicalURL validates an http(s) URL and returns it in canonical form:
// lowercased scheme/host, no trailing slash on a bare path.
func canonicalURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	out := u.String()
	out = strings.TrimSuffix(out, "/")
	return out, true
}

// normalizeQuantity canonicalizes "250", "1,200", "2.5M", "200-500",
// "1M to 5M" into "250", "1200", "2500000", "200-500", "1000000-5000000",
// with an optional currency prefix on each bound.
func normalizeQuantity(raw, prefix string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, prefix, "")
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "employees", "")
	v = strings.TrimSpace(v)

	if m := rangeRe.FindStringSubmatch(v); m != nil {
		lo, ok1 := expandMagnitude(m[1], m[2])
		hi, ok2 := expandMagnitude(m[3], m[4])
		if !ok1 || !ok2 || hi < lo {
			return "", false
		}
		return fmt.Sprintf("%s%d-%s%d", prefix, lo, prefix, hi), true
	}
	if m := exactRe.FindStringSubmatch(v); m != nil {
		n, ok := expandMagnitude(m[1], m[2])
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%s%d", prefix, n), true
	}
	return "", false
}

func expandMagnitude(num, suffix string) (int64, bool) {
	cleaned := strings.ReplaceAll(num, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	switch suffix {
	case "k":
		f *= 1e3
	case "m":
		f *= 1e6
	case "b":
		f *= 1e9
	}
	return int64(f), true
}
