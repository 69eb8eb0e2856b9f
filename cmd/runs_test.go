package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/store"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	runs := []store.RunSummary{
		{
			ID:        "0b5c8c1e-aaaa-bbbb-cccc-000000000001",
			Name:      "Acme",
			Status:    model.RunStatusDone,
			CreatedAt: now,
			UpdatedAt: now.Add(42 * time.Second),
		},
		{
			ID:        "0b5c8c1e-aaaa-bbbb-cccc-000000000002",
			Website:   "https://a-very-long-company-website.example.com",
			Status:    model.RunStatusCollecting,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "0b5c8c1e")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "42s")
	// Long identifiers are truncated for display.
	assert.Contains(t, out, "...")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("123456789"))
	assert.Equal(t, "short", truncateID("short"))
}
