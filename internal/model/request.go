package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidInput indicates a request that carries neither a company name
// nor a website. It is the only error that fails an enrichment run outright.
var ErrInvalidInput = eris.New("model: request needs a company name or website")

// EnrichmentRequest identifies the company to enrich. At least one of
// Name or Website must be non-empty.
type EnrichmentRequest struct {
	Name    string `json:"name,omitempty"`
	Website string `json:"website,omitempty"`
}

// Validate checks that the request identifies a company.
func (r EnrichmentRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Website) == "" {
		return ErrInvalidInput
	}
	return nil
}

// Domain returns the registrable host of the request website, lowercased
// and stripped of a leading "www.". Empty when no website is set or the
// URL does not parse.
func (r EnrichmentRequest) Domain() string {
	return NormalizeDomain(r.Website)
}

// NormalizeDomain extracts a comparable host from a URL or bare domain.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
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
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
