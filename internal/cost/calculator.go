// Package cost estimates API spend for a run from accumulated token usage.
package cost

import "github.com/clearbound/enrich-cli/pkg/anthropic"

// ModelRate holds per-model token pricing in USD per million tokens.
type ModelRate struct {
	Input         float64
	Output        float64
	CacheWriteMul float64
	CacheReadMul  float64
}

// DefaultRates covers the models the pipeline is configured with.
var DefaultRates = map[string]ModelRate{
	"claude-haiku-4-5-20251001": {
		Input: 1.00, Output: 5.00,
		CacheWriteMul: 1.25, CacheReadMul: 0.1,
	},
	"claude-sonnet-4-5-20250929": {
		Input: 3.00, Output: 15.00,
		CacheWriteMul: 1.25, CacheReadMul: 0.1,
	},
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates map[string]ModelRate
}

// NewCalculator creates a Calculator; nil rates means DefaultRates.
func NewCalculator(rates map[string]ModelRate) *Calculator {
	if rates == nil {
		rates = DefaultRates
	}
	return &Calculator{rates: rates}
}

// Claude computes the USD cost of the accumulated usage for one model.
// Unknown models cost zero; the caller treats the estimate as best effort.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates[model]
	if !ok {
		return 0
	}

	inCost := float64(u.InputTokens) / 1e6 * rate.Input
	outCost := float64(u.OutputTokens) / 1e6 * rate.Output
	cacheWrite := float64(u.CacheCreationInputTokens) / 1e6 * rate.Input * rate.CacheWriteMul
	cacheRead := float64(u.CacheReadInputTokens) / 1e6 * rate.Input * rate.CacheReadMul
	return inCost + outCost + cacheWrite + cacheRead
}
