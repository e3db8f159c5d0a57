package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	// Reduce noise in tests
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	store, err := New(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func testRun(id, shop string, startedAt time.Time) *domain.ProcessingRun {
	finished := startedAt.Add(3 * time.Second)
	return &domain.ProcessingRun{
		ID:         id,
		Shop:       shop,
		Status:     domain.RunStatusCompleted,
		StartedAt:  startedAt,
		FinishedAt: &finished,
		Success:    true,
		OutputDir:  "/tmp/out/" + shop,
		Stats: domain.ProcessingStats{
			TotalRecords:   120,
			TotalProcessed: 118,
			TotalMapped:    110,
			TotalUnmapped:  8,
			TotalErrors:    2,
		},
		UnmappedCount: 8,
	}
}

func TestSaveRunAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run := testRun("run-1", "mega", time.Now().UTC())
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, "mega", got.Shop)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.True(t, got.Success)
	assert.Equal(t, 110, got.Stats.TotalMapped)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.IsFinished())
}

func TestGetRunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestSaveRunOverwritesSameID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC()
	running := &domain.ProcessingRun{
		ID:        "run-1",
		Shop:      "mega",
		Status:    domain.RunStatusRunning,
		StartedAt: started,
	}
	require.NoError(t, store.SaveRun(ctx, running))

	finished := testRun("run-1", "mega", started)
	require.NoError(t, store.SaveRun(ctx, finished))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)

	// The re-save must not duplicate history entries.
	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSaveRunValidation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.SaveRun(ctx, &domain.ProcessingRun{Shop: "mega"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))

	err = store.SaveRun(ctx, &domain.ProcessingRun{ID: "run-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrValidation))
}

func TestListRunsNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, testRun("run-old", "mega", base)))
	require.NoError(t, store.SaveRun(ctx, testRun("run-mid", "carrefour", base.Add(time.Minute))))
	require.NoError(t, store.SaveRun(ctx, testRun("run-new", "mega", base.Add(2*time.Minute))))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-mid", runs[1].ID)
	assert.Equal(t, "run-old", runs[2].ID)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-new", limited[0].ID)
	assert.Equal(t, "run-mid", limited[1].ID)
}

func TestListShopRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(ctx, testRun("run-m1", "mega", base)))
	require.NoError(t, store.SaveRun(ctx, testRun("run-c1", "carrefour", base.Add(time.Minute))))
	require.NoError(t, store.SaveRun(ctx, testRun("run-m2", "mega", base.Add(2*time.Minute))))

	runs, err := store.ListShopRuns(ctx, "mega", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-m2", runs[0].ID)
	assert.Equal(t, "run-m1", runs[1].ID)

	none, err := store.ListShopRuns(ctx, "kaufland", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveUnmappedReplacesSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := []domain.UnmappedCategory{
		{Shop: "mega", OriginalCategory: "Articole Gradina", Count: 7, FirstSeen: time.Now().UTC()},
		{Shop: "mega", OriginalCategory: "Diverse", Count: 2, FirstSeen: time.Now().UTC()},
	}
	require.NoError(t, store.SaveUnmapped(ctx, "mega", first))
	require.NoError(t, store.SaveUnmapped(ctx, "carrefour", []domain.UnmappedCategory{
		{Shop: "carrefour", OriginalCategory: "Promotii", Count: 11, FirstSeen: time.Now().UTC()},
	}))

	entries, err := store.ListUnmapped(ctx, "mega")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Articole Gradina", entries[0].OriginalCategory)
	assert.Equal(t, 7, entries[0].Count)

	// The next run resolved one category; the snapshot shrinks.
	require.NoError(t, store.SaveUnmapped(ctx, "mega", first[:1]))

	entries, err = store.ListUnmapped(ctx, "mega")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Articole Gradina", entries[0].OriginalCategory)

	// The other shop's snapshot is untouched.
	other, err := store.ListUnmapped(ctx, "carrefour")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "Promotii", other[0].OriginalCategory)
}

func TestSaveUnmappedEmptyClearsSnapshot(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		{Shop: "mega", OriginalCategory: "Articole Gradina", Count: 7, FirstSeen: time.Now().UTC()},
	}))
	require.NoError(t, store.SaveUnmapped(ctx, "mega", nil))

	entries, err := store.ListUnmapped(ctx, "mega")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListUnmappedAllShopsSortedByCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		{Shop: "mega", OriginalCategory: "Diverse", Count: 2, FirstSeen: time.Now().UTC()},
		{Shop: "mega", OriginalCategory: "Articole Gradina", Count: 7, FirstSeen: time.Now().UTC()},
	}))
	require.NoError(t, store.SaveUnmapped(ctx, "carrefour", []domain.UnmappedCategory{
		{Shop: "carrefour", OriginalCategory: "Promotii", Count: 11, FirstSeen: time.Now().UTC()},
	}))

	entries, err := store.ListUnmapped(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Promotii", entries[0].OriginalCategory)
	assert.Equal(t, "Articole Gradina", entries[1].OriginalCategory)
	assert.Equal(t, "Diverse", entries[2].OriginalCategory)
}

func TestDeleteUnmapped(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		{Shop: "mega", OriginalCategory: "Articole Gradina", Count: 7, FirstSeen: time.Now().UTC()},
		{Shop: "mega", OriginalCategory: "Diverse", Count: 2, FirstSeen: time.Now().UTC()},
	}))

	require.NoError(t, store.DeleteUnmapped(ctx, "mega", "Diverse"))

	entries, err := store.ListUnmapped(ctx, "mega")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Articole Gradina", entries[0].OriginalCategory)

	err = store.DeleteUnmapped(ctx, "mega", "Diverse")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestRunsSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	store, err := New(path, logger)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(ctx, testRun("run-1", "mega", time.Now().UTC())))
	require.NoError(t, store.SaveUnmapped(ctx, "mega", []domain.UnmappedCategory{
		{Shop: "mega", OriginalCategory: "Articole Gradina", Count: 7, FirstSeen: time.Now().UTC()},
	}))
	require.NoError(t, store.Close())

	reopened, err := New(path, logger)
	require.NoError(t, err)
	defer reopened.Close()

	run, err := reopened.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "mega", run.Shop)

	entries, err := reopened.ListUnmapped(ctx, "mega")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
