package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"encoding/json/v2"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/ratelimit"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/store"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

func testLogger() *slog.Logger {
	// Reduce noise in tests
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// apiTestServer wraps the server with everything a handler test touches.
type apiTestServer struct {
	*Server
	api      humatest.TestAPI
	inputDir string
	cleanup  func()
}

// setupTestServer builds a server on real components: a badger store and rule
// store in temp dirs, the default taxonomy, and a limiter generous enough to
// stay invisible. Seed rules land under the mega shop.
func setupTestServer(t *testing.T, seed ...domain.CategoryRule) *apiTestServer {
	return setupTestServerWithLimiter(t, ratelimit.New(100, 100), seed...)
}

func setupTestServerWithLimiter(t *testing.T, limiter *ratelimit.KeyedRateLimiter, seed ...domain.CategoryRule) *apiTestServer {
	t.Helper()

	logger := testLogger()

	ruleStore, err := rules.NewStore(t.TempDir())
	require.NoError(t, err)
	if len(seed) > 0 {
		require.NoError(t, ruleStore.Save("mega", seed))
	}

	index := taxonomy.NewIndex(taxonomy.DefaultTree())
	engine, err := mapping.Load(mapping.DefaultConfig(), index, ruleStore, logger)
	require.NoError(t, err)

	registry := normalizer.NewRegistry(func(shop string) normalizer.Normalizer {
		return normalizer.NewGeneric(shop, engine, logger)
	})

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)

	inputDir := t.TempDir()
	processor, err := pipeline.NewProcessor(engine, registry, st, pipeline.Config{
		InputDir:  inputDir,
		OutputDir: t.TempDir(),
		BatchSize: 2,
	}, logger)
	require.NoError(t, err)

	srv := NewServer(processor, engine, st, index, limiter, Config{InputDir: inputDir}, logger)

	cleanup := func() {
		limiter.Stop()
		_ = st.Close()
	}

	return &apiTestServer{
		Server:   srv,
		api:      humatest.Wrap(t, srv.api),
		inputDir: inputDir,
		cleanup:  cleanup,
	}
}

// writeInput drops an export file into the shop's input directory.
func (ts *apiTestServer) writeInput(t *testing.T, shop, name string, records []map[string]any) {
	t.Helper()

	dir := filepath.Join(ts.inputDir, shop)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func milkRule() domain.CategoryRule {
	return domain.CategoryRule{
		ID:          "rule-lapte",
		Shop:        "mega",
		Pattern:     "Lapte",
		PatternType: domain.PatternExact,
		TargetPath:  []string{"Lactate & Ouă", "Lapte"},
		Enabled:     true,
	}
}

func milkRecord(title string) map[string]any {
	return map[string]any{"title": title, "category": "Lapte", "price": "7,49 lei"}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))

	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["input"].Status)
	assert.Equal(t, "healthy", health.Components["taxonomy"].Status)
	assert.Equal(t, "idle", health.Components["runs"].Message)
}

func TestHealthCheckDegradedWithoutInputDir(t *testing.T) {
	ts := setupTestServer(t)
	defer ts.cleanup()

	require.NoError(t, os.RemoveAll(ts.inputDir))

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &health))

	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Components["input"].Status)
	assert.Equal(t, "input directory missing", health.Components["input"].Message)
}

func TestMutationRateLimit(t *testing.T) {
	// Burst of one: the first mutation spends it, the second is refused.
	ts := setupTestServerWithLimiter(t, ratelimit.New(0.001, 1))
	defer ts.cleanup()

	first := ts.api.Post("/api/v1/rules", map[string]any{
		"shop":         "mega",
		"pattern":      "Lapte praf",
		"pattern_type": "exact",
		"target":       "Lapte",
	})
	require.Equal(t, http.StatusOK, first.Code, "first mutation failed: %s", first.Body.String())

	second := ts.api.Post("/api/v1/rules", map[string]any{
		"shop":         "mega",
		"pattern":      "Iaurt",
		"pattern_type": "exact",
		"target":       "Iaurt & Kefir",
	})
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")

	// Reads are never limited.
	list := ts.api.Get("/api/v1/rules/mega")
	assert.Equal(t, http.StatusOK, list.Code)
}
