package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"encoding/json/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

func unmappedEntry(shop, category string, count int) domain.UnmappedCategory {
	return domain.UnmappedCategory{
		Shop:             shop,
		OriginalCategory: category,
		Count:            count,
		Samples:          []domain.UnmappedSample{{ProductName: "Produs " + category}},
		FirstSeen:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestListUnmappedServesSnapshot(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ctx := context.Background()
	require.NoError(t, ts.store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		unmappedEntry("mega", "Diverse", 5),
		unmappedEntry("mega", "Sezonale", 2),
	}))
	require.NoError(t, ts.store.SaveUnmapped(ctx, "carrefour", []domain.UnmappedCategory{
		unmappedEntry("carrefour", "Promoții", 3),
	}))

	resp := ts.api.Get("/api/v1/unmapped")
	require.Equal(t, http.StatusOK, resp.Code)

	var all ListUnmappedResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &all))
	require.Len(t, all.Entries, 3)
	assert.Equal(t, "Diverse", all.Entries[0].OriginalCategory)
	assert.Equal(t, 5, all.Entries[0].Count)
	require.NotEmpty(t, all.Entries[0].Samples)
	assert.Equal(t, "Produs Diverse", all.Entries[0].Samples[0].ProductName)

	resp = ts.api.Get("/api/v1/unmapped?shop=mega")
	require.Equal(t, http.StatusOK, resp.Code)

	var filtered ListUnmappedResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &filtered))
	require.Len(t, filtered.Entries, 2)
	for _, entry := range filtered.Entries {
		assert.Equal(t, "mega", entry.Shop)
	}
}

func TestClearUnmappedRemovesSnapshotEntry(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	ctx := context.Background()
	require.NoError(t, ts.store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		unmappedEntry("mega", "Diverse Produse", 4),
	}))

	resp := ts.api.Delete("/api/v1/unmapped/mega/" + url.PathEscape("Diverse Produse"))
	require.Equal(t, http.StatusOK, resp.Code, "clear failed: %s", resp.Body.String())
	assert.Contains(t, resp.Body.String(), "cleared")

	list := ts.api.Get("/api/v1/unmapped?shop=mega")
	require.Equal(t, http.StatusOK, list.Code)

	var listed ListUnmappedResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listed))
	assert.Empty(t, listed.Entries)

	// A second clear has nothing left to remove.
	resp = ts.api.Delete("/api/v1/unmapped/mega/" + url.PathEscape("Diverse Produse"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestClearUnmappedAlsoDropsLiveQueueEntry(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	// Put an entry in the live queue without flushing it to the store.
	ts.engine.MapCategory(domain.MappingContext{
		Shop:             "mega",
		OriginalCategory: "Qwerty Xyzzy",
		ProductName:      "Produs misterios",
	})
	require.NotEmpty(t, ts.engine.UnmappedForShop("mega"))

	resp := ts.api.Delete("/api/v1/unmapped/mega/" + url.PathEscape("Qwerty Xyzzy"))
	require.Equal(t, http.StatusOK, resp.Code, "clear failed: %s", resp.Body.String())

	assert.Empty(t, ts.engine.UnmappedForShop("mega"))

	resp = ts.api.Delete("/api/v1/unmapped/mega/" + url.PathEscape("Qwerty Xyzzy"))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestClearUnmappedUnknownEntry(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Delete("/api/v1/unmapped/mega/Inexistent")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Contains(t, resp.Body.String(), "NOT_FOUND")
}
