package api

import (
	"net/http"
	"testing"

	"encoding/json/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTaxonomy(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/api/v1/taxonomy")
	require.Equal(t, http.StatusOK, resp.Code)

	var listed TaxonomyResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &listed))
	require.NotEmpty(t, listed.Categories)
	assert.Equal(t, len(listed.Categories), listed.Total)

	bySlug := make(map[string]CategoryResponse, len(listed.Categories))
	for _, cat := range listed.Categories {
		bySlug[cat.Slug] = cat
	}

	lapte, ok := bySlug["lapte"]
	require.True(t, ok, "default tree category missing from listing")
	assert.Equal(t, "Lapte", lapte.Name)
	assert.Equal(t, []string{"Lactate & Ouă", "Lapte"}, lapte.Path)

	other, ok := bySlug["other"]
	require.True(t, ok, "fallback root missing from listing")
	assert.Equal(t, []string{"Other"}, other.Path)
}
