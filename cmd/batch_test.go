package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	input := strings.Join([]string{
		"Company,Website,Notes",
		"Acme,https://acme.com,anvils",
		"Globex,,conglomerate",
		",,empty row",
	}, "\n")

	reqs, err := parseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Acme", reqs[0].Name)
	assert.Equal(t, "https://acme.com", reqs[0].Website)
	assert.Equal(t, "Globex", reqs[1].Name)
	assert.Empty(t, reqs[1].Website)
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := parseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestHeaderColumns(t *testing.T) {
	name, site := headerColumns([]string{"id", "company_name", "URL"})
	assert.Equal(t, 1, name)
	assert.Equal(t, 2, site)

	name, site = headerColumns([]string{"foo", "bar"})
	assert.Equal(t, -1, name)
	assert.Equal(t, -1, site)
}

func TestRowRequest_SkipsInvalid(t *testing.T) {
	_, ok := rowRequest([]string{"", ""}, 0, 1)
	assert.False(t, ok)

	req, ok := rowRequest([]string{"Acme"}, 0, 1)
	require.True(t, ok)
	assert.Equal(t, "Acme", req.Name)
}

func TestReadBatchFile_UnsupportedExtension(t *testing.T) {
	_, err := readBatchFile("companies.txt")
	assert.Error(t, err)
}
