package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"encoding/json/v2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/shard"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

func testLogger() *slog.Logger {
	// Reduce noise in tests
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// recorderStub keeps the latest document per run ID, the way the real store
// overwrites on re-save, plus the status sequence it observed.
type recorderStub struct {
	mu       sync.Mutex
	order    []string
	byID     map[string]*domain.ProcessingRun
	statuses []domain.RunStatus
	unmapped map[string][]domain.UnmappedCategory
}

func (r *recorderStub) SaveRun(_ context.Context, run *domain.ProcessingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID == nil {
		r.byID = make(map[string]*domain.ProcessingRun)
	}
	if _, ok := r.byID[run.ID]; !ok {
		r.order = append(r.order, run.ID)
	}
	r.byID[run.ID] = run
	r.statuses = append(r.statuses, run.Status)
	return nil
}

// saved returns the latest document per run, in first-save order.
func (r *recorderStub) saved() []*domain.ProcessingRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.ProcessingRun, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *recorderStub) SaveUnmapped(_ context.Context, shop string, entries []domain.UnmappedCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unmapped == nil {
		r.unmapped = make(map[string][]domain.UnmappedCategory)
	}
	r.unmapped[shop] = entries
	return nil
}

type testEnv struct {
	processor *Processor
	inputDir  string
	outputDir string
	recorder  *recorderStub
}

func newTestEnv(t *testing.T, seed ...domain.CategoryRule) *testEnv {
	t.Helper()

	store, err := rules.NewStore(t.TempDir())
	require.NoError(t, err)
	if len(seed) > 0 {
		require.NoError(t, store.Save("mega", seed))
	}
	engine, err := mapping.Load(mapping.DefaultConfig(), taxonomy.NewIndex(taxonomy.DefaultTree()), store, testLogger())
	require.NoError(t, err)

	registry := normalizer.NewRegistry(func(shop string) normalizer.Normalizer {
		return normalizer.NewGeneric(shop, engine, testLogger())
	})

	env := &testEnv{
		inputDir:  t.TempDir(),
		outputDir: t.TempDir(),
		recorder:  &recorderStub{},
	}
	env.processor, err = NewProcessor(engine, registry, env.recorder, Config{
		InputDir:  env.inputDir,
		OutputDir: env.outputDir,
		BatchSize: 2,
	}, testLogger())
	require.NoError(t, err)
	return env
}

func (e *testEnv) writeInput(t *testing.T, shop, name string, records []map[string]any) {
	t.Helper()

	dir := filepath.Join(e.inputDir, shop)
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

// mixedRecords is one exact hit, one category no rule or tier resolves, and
// one record with a broken price.
func mixedRecords() []map[string]any {
	return []map[string]any{
		{"title": "Lapte integral 3,5%", "category": "Lapte", "price": "7,49 lei"},
		{"title": "Xyzzy Qwerty 123", "category": "Qwerty Xyzzy", "price": 3.2},
		{"title": "Produs stricat", "category": "Lapte", "price": "abc"},
	}
}

func TestProcessShopEndToEnd(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", mixedRecords())

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{EnableValidation: true})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Success)
	assert.False(t, result.DryRun)
	assert.Equal(t, filepath.Join(env.outputDir, "mega"), result.OutputDir)

	stats := result.Stats
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, map[string]int{"products.json": 3}, stats.FileCounts)
	assert.Equal(t, 2, stats.TotalProcessed)
	assert.Equal(t, 1, stats.TotalMapped)
	assert.Equal(t, 1, stats.TotalUnmapped)
	assert.Equal(t, 1, stats.TotalErrors)
	assert.Equal(t, 0, stats.TotalSkipped)
	assert.Equal(t, 2, stats.Sharding.TotalProducts)
	assert.Equal(t, 2, stats.Sharding.TotalShardFiles)
	assert.Equal(t, map[string]int{"lactate-oua/lapte": 1, "other": 1}, stats.Sharding.PerCategory)

	require.Len(t, result.Errors, 1)
	perr := result.Errors[0]
	assert.Equal(t, "products.json", perr.SourceFile)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "Produs stricat", perr.ProductName)
	assert.Contains(t, perr.Message, `unparseable price "abc"`)

	require.Len(t, result.Unmapped, 1)
	assert.Equal(t, "Qwerty Xyzzy", result.Unmapped[0].OriginalCategory)
	assert.Equal(t, 1, result.Unmapped[0].Count)
	require.NotEmpty(t, result.Unmapped[0].Samples)
	assert.Equal(t, "Xyzzy Qwerty 123", result.Unmapped[0].Samples[0].ProductName)

	reader := shard.NewReader(result.OutputDir)
	milk, err := reader.ReadShard("lactate-oua/lapte")
	require.NoError(t, err)
	require.Len(t, milk, 1)
	assert.Equal(t, "Lapte integral 3,5%", milk[0].Title)
	assert.Equal(t, domain.MappingStatusOK, milk[0].MappingStatus)
	assert.Equal(t, "products.json", milk[0].SourceFile)

	other, err := reader.ReadShard("other")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, domain.MappingStatusUnmapped, other[0].MappingStatus)
	assert.Equal(t, []string{"Other"}, other[0].CategoryPath)
	assert.Equal(t, "Qwerty Xyzzy", other[0].OriginalCategory)

	index, err := reader.ReadIndex()
	require.NoError(t, err)
	assert.Len(t, index, 2)

	meta, err := reader.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "mega", meta.Shop)
	assert.Equal(t, 2, meta.Stats.TotalProducts)

	saved := env.recorder.saved()
	require.Len(t, saved, 1)
	run := saved[0]
	assert.Equal(t, result.RunID, run.ID)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.True(t, run.Success)
	assert.Equal(t, 1, run.UnmappedCount)
	require.NotNil(t, run.FinishedAt)

	// The run was visible as running before its terminal save.
	assert.Equal(t, []domain.RunStatus{domain.RunStatusRunning, domain.RunStatusCompleted}, env.recorder.statuses)
	require.Len(t, env.recorder.unmapped["mega"], 1)
}

func TestProcessShopStrict(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", mixedRecords())

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{Strict: true})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, result.Stats.TotalProcessed)
	assert.Equal(t, 1, result.Stats.TotalMapped)
	assert.Equal(t, 0, result.Stats.TotalUnmapped)
	assert.Equal(t, 2, result.Stats.TotalErrors)

	var strictErr bool
	for _, perr := range result.Errors {
		if perr.ProductName == "Xyzzy Qwerty 123" {
			assert.Contains(t, perr.Message, "strict mapping")
			strictErr = true
		}
	}
	assert.True(t, strictErr, "expected a strict mapping rejection")

	require.Len(t, result.Unmapped, 1)

	// Outputs written before the failure verdict stay on disk.
	reader := shard.NewReader(result.OutputDir)
	milk, err := reader.ReadShard("lactate-oua/lapte")
	require.NoError(t, err)
	assert.Len(t, milk, 1)
	other, err := reader.ReadShard("other")
	require.NoError(t, err)
	assert.Empty(t, other)

	saved := env.recorder.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, domain.RunStatusFailed, saved[0].Status)
	assert.True(t, saved[0].Strict)
}

func TestProcessShopDryRun(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "a.json", []map[string]any{milkRecord("Lapte unu"), milkRecord("Lapte doi")})
	env.writeInput(t, "mega", "b.json", []map[string]any{milkRecord("Lapte trei")})

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.DryRun)
	assert.Equal(t, 3, result.Stats.TotalRecords)
	assert.Equal(t, map[string]int{"a.json": 2, "b.json": 1}, result.Stats.FileCounts)
	assert.Equal(t, 0, result.Stats.TotalProcessed)
	assert.Empty(t, result.OutputDir)
	assert.Empty(t, result.ReportPaths)

	_, statErr := os.Stat(filepath.Join(env.outputDir, "mega"))
	assert.True(t, os.IsNotExist(statErr), "dry run must not create outputs")

	saved := env.recorder.saved()
	require.Len(t, saved, 1)
	assert.True(t, saved[0].DryRun)
	assert.Empty(t, env.recorder.unmapped)
}

func TestProcessShopLimit(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "a.json", []map[string]any{
		milkRecord("Lapte 1"), milkRecord("Lapte 2"), milkRecord("Lapte 3"),
		milkRecord("Lapte 4"), milkRecord("Lapte 5"),
	})
	env.writeInput(t, "mega", "b.json", []map[string]any{
		milkRecord("Lapte 6"), milkRecord("Lapte 7"), milkRecord("Lapte 8"), milkRecord("Lapte 9"),
	})

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{Limit: 3})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 9, result.Stats.TotalRecords)
	assert.Equal(t, 3, result.Stats.TotalProcessed)
	assert.Equal(t, 6, result.Stats.TotalSkipped)
	assert.Equal(t, 0, result.Stats.TotalErrors)

	index, err := shard.NewReader(result.OutputDir).ReadIndex()
	require.NoError(t, err)
	assert.Len(t, index, 3)
}

func TestProcessShopSkipsUnreadableFile(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "b.json", []map[string]any{milkRecord("Lapte bun")})
	require.NoError(t, os.WriteFile(filepath.Join(env.inputDir, "mega", "a.json"), []byte("{nope"), 0o644))

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Stats.TotalRecords)
	assert.Equal(t, 1, result.Stats.TotalProcessed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "a.json", result.Errors[0].SourceFile)
	assert.Contains(t, result.Errors[0].Message, "parse a.json")
}

func TestProcessShopMissingInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.processor.ProcessShop(context.Background(), "ghost", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInputMissing))

	// An existing but empty shop directory is the same misconfiguration.
	require.NoError(t, os.MkdirAll(filepath.Join(env.inputDir, "empty"), 0o755))
	_, err = env.processor.ProcessShop(context.Background(), "empty", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrInputMissing))

	_, err = env.processor.ProcessShop(context.Background(), "", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))
}

func TestProcessShopReports(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", mixedRecords())

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{Reports: true})
	require.NoError(t, err)

	require.Len(t, result.ReportPaths, 7)
	for _, p := range result.ReportPaths {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	data, err := os.ReadFile(filepath.Join(result.OutputDir, "reports", "processing-summary.json"))
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, result.RunID, summary["run_id"])
	assert.Equal(t, "mega", summary["shop"])
}

func TestProcessShopProgress(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", mixedRecords())

	var mu sync.Mutex
	seen := make(map[RunPhase]bool)
	maxCurrent := 0
	opts := Options{OnProgress: func(p *Progress) {
		mu.Lock()
		defer mu.Unlock()
		seen[p.Phase] = true
		if p.Phase == PhaseProcessing && p.Current > maxCurrent {
			maxCurrent = p.Current
		}
	}}

	_, err := env.processor.ProcessShop(context.Background(), "mega", opts)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[PhaseComplete]
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[PhaseProcessing])
	assert.True(t, seen[PhaseFinalizing])
	assert.Equal(t, 3, maxCurrent)
}

func TestProcessMultiple(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", []map[string]any{milkRecord("Lapte mega")})
	env.writeInput(t, "profi", "products.json", []map[string]any{milkRecord("Lapte profi")})

	results, err := env.processor.ProcessMultiple(context.Background(), []string{"mega", "profi"}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mega", results[0].Shop)
	assert.Equal(t, "profi", results[1].Shop)
	for _, result := range results {
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.Stats.TotalProcessed)
	}
	assert.Len(t, env.recorder.saved(), 2)
}

func TestProcessShopUsesAssignedRunID(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", []map[string]any{milkRecord("Lapte mega")})

	result, err := env.processor.ProcessShop(context.Background(), "mega", Options{RunID: "run-fixed"})
	require.NoError(t, err)

	assert.Equal(t, "run-fixed", result.RunID)
	saved := env.recorder.saved()
	require.Len(t, saved, 1)
	assert.Equal(t, "run-fixed", saved[0].ID)
}

func TestProcessMultipleIgnoresAssignedRunID(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", []map[string]any{milkRecord("Lapte mega")})
	env.writeInput(t, "profi", "products.json", []map[string]any{milkRecord("Lapte profi")})

	results, err := env.processor.ProcessMultiple(context.Background(), []string{"mega", "profi"}, Options{RunID: "run-fixed"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NotEqual(t, "run-fixed", results[0].RunID)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
}

func TestProcessMultipleAccountsForFailedShop(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", []map[string]any{milkRecord("Lapte mega")})

	results, err := env.processor.ProcessMultiple(context.Background(), []string{"ghost", "mega"}, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	require.Len(t, results[0].Errors, 1)
	assert.Contains(t, results[0].Errors[0].Message, "ghost")
	assert.True(t, results[1].Success)
}

func TestProcessMultipleStrictStopsAtFirstFailure(t *testing.T) {
	env := newTestEnv(t, milkRule())
	env.writeInput(t, "mega", "products.json", []map[string]any{milkRecord("Lapte mega")})

	results, err := env.processor.ProcessMultiple(context.Background(), []string{"ghost", "mega"}, Options{Strict: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrStrictMode))
	require.Len(t, results, 1)
	assert.Equal(t, "ghost", results[0].Shop)
	assert.False(t, results[0].Success)

	// The second shop never ran.
	require.Len(t, env.recorder.saved(), 1)
}

func TestProcessShopContextCancel(t *testing.T) {
	env := newTestEnv(t, milkRule())
	var records []map[string]any
	for range 10 {
		records = append(records, milkRecord("Lapte"))
	}
	env.writeInput(t, "mega", "products.json", records)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.processor.ProcessShop(ctx, "mega", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewProcessorValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewProcessor(nil, nil, nil, Config{}, testLogger())
	require.Error(t, err)

	_, err = NewProcessor(env.processor.engine, env.processor.registry, nil, Config{InputDir: "in"}, testLogger())
	require.Error(t, err)

	p, err := NewProcessor(env.processor.engine, env.processor.registry, nil, Config{InputDir: "in", OutputDir: "out"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, p.cfg.BatchSize)
}

func TestProgressTrackerSnapshot(t *testing.T) {
	tracker := NewProgressTracker(nil)
	tracker.SetPhase(PhaseProcessing)
	tracker.SetTotal(10)
	tracker.Increment("a.json")
	tracker.Increment("a.json")
	tracker.AddError()

	got := tracker.Get()
	assert.Equal(t, PhaseProcessing, got.Phase)
	assert.Equal(t, 10, got.Total)
	assert.Equal(t, 2, got.Current)
	assert.Equal(t, "a.json", got.CurrentItem)
	assert.Equal(t, 1, got.Errors)
}
