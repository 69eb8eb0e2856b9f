package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clearbound/enrich-cli/pkg/anthropic"
)

func TestCalculator_Claude(t *testing.T) {
	c := NewCalculator(map[string]ModelRate{
		"haiku": {Input: 1.00, Output: 5.00, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	})

	cost := c.Claude("haiku", anthropic.TokenUsage{
		InputTokens:              1_000_000,
		OutputTokens:             200_000,
		CacheCreationInputTokens: 100_000,
		CacheReadInputTokens:     1_000_000,
	})
	// 1.00 + 1.00 + 0.125 + 0.10
	assert.InDelta(t, 2.225, cost, 1e-9)
}

func TestCalculator_UnknownModel(t *testing.T) {
	c := NewCalculator(nil)
	assert.Zero(t, c.Claude("nope", anthropic.TokenUsage{InputTokens: 1000}))
}

func TestCalculator_DefaultRates(t *testing.T) {
	c := NewCalculator(nil)
	cost := c.Claude("claude-haiku-4-5-20251001", anthropic.TokenUsage{InputTokens: 1_000_000})
	assert.InDelta(t, 1.00, cost, 1e-9)
}
