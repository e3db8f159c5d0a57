package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

// Run storage key prefixes.
// Uses inverted timestamps for descending order (newest first) during forward iteration.
const (
	runPrefix        = "run:"
	runIdxTimePrefix = "run:idx:time:"
	runIdxShopPrefix = "run:idx:shop:"
)

// invertedTimestamp returns a string that sorts in descending order.
// Uses MaxInt64 - UnixNano to ensure newest timestamps come first during forward iteration.
func invertedTimestamp(t time.Time) string {
	inverted := math.MaxInt64 - t.UnixNano()
	return fmt.Sprintf("%019d", inverted)
}

// SaveRun stores a run with all indexes in a single transaction. Saving the
// same run ID again overwrites the previous record; the pipeline re-saves a
// run when it moves from running to a terminal status. StartedAt must not
// change between saves of the same run or the time indexes would duplicate.
func (s *Store) SaveRun(ctx context.Context, run *domain.ProcessingRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run == nil || run.ID == "" {
		return domainerrors.Validation("run ID is required")
	}
	if run.Shop == "" {
		return domainerrors.Validation("run shop is required")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run: %w", err)
	}

	invertedTS := invertedTimestamp(run.StartedAt)

	err = s.db.Update(func(txn *badger.Txn) error {
		// Primary key: run:{id} -> ProcessingRun JSON
		primaryKey := []byte(runPrefix + run.ID)
		if err := txn.Set(primaryKey, data); err != nil {
			return fmt.Errorf("setting primary key: %w", err)
		}

		// Time index: run:idx:time:{inverted_timestamp}:{id} -> "" (key-only)
		// This allows scanning newest-first without reverse iteration
		timeKey := []byte(runIdxTimePrefix + invertedTS + ":" + run.ID)
		if err := txn.Set(timeKey, []byte{}); err != nil {
			return fmt.Errorf("setting time index: %w", err)
		}

		// Shop index: run:idx:shop:{shop}:{inverted_timestamp}:{id} -> ""
		shopKey := []byte(runIdxShopPrefix + run.Shop + ":" + invertedTS + ":" + run.ID)
		if err := txn.Set(shopKey, []byte{}); err != nil {
			return fmt.Errorf("setting shop index: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}

	return nil
}

// GetRun retrieves a single run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.ProcessingRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var run domain.ProcessingRun
	err := s.get([]byte(runPrefix+id), &run)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domainerrors.NotFoundf("run %s not found", id)
		}
		return nil, fmt.Errorf("getting run %s: %w", id, err)
	}

	return &run, nil
}

// ListRuns retrieves run history across all shops sorted by StartedAt
// descending. Returns up to limit runs; limit <= 0 returns everything.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.ProcessingRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []*domain.ProcessingRun

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // Key-only index, no values to fetch
		opts.Prefix = []byte(runIdxTimePrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			// Extract run ID from key: run:idx:time:{inverted_ts}:{id}
			id := extractRunIDFromTimeKey(string(it.Item().Key()))
			if id == "" {
				continue
			}

			run, err := s.getRunInTxn(txn, id)
			if err != nil {
				continue
			}
			runs = append(runs, run)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching run history: %w", err)
	}

	return runs, nil
}

// ListShopRuns retrieves run history for a specific shop sorted by StartedAt
// descending. Returns up to limit runs; limit <= 0 returns everything.
func (s *Store) ListShopRuns(ctx context.Context, shop string, limit int) ([]*domain.ProcessingRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []*domain.ProcessingRun
	indexPrefix := []byte(runIdxShopPrefix + shop + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = indexPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(indexPrefix); it.ValidForPrefix(indexPrefix); it.Next() {
			if limit > 0 && len(runs) >= limit {
				break
			}

			id := extractRunIDFromShopKey(string(it.Item().Key()), shop)
			if id == "" {
				continue
			}

			run, err := s.getRunInTxn(txn, id)
			if err != nil {
				continue
			}
			runs = append(runs, run)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching runs for shop %s: %w", shop, err)
	}

	return runs, nil
}

// getRunInTxn retrieves a run within an existing transaction.
func (s *Store) getRunInTxn(txn *badger.Txn, id string) (*domain.ProcessingRun, error) {
	item, err := txn.Get([]byte(runPrefix + id))
	if err != nil {
		return nil, err
	}

	var run domain.ProcessingRun
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &run)
	})
	if err != nil {
		return nil, err
	}

	return &run, nil
}

// extractRunIDFromTimeKey extracts the run ID from a time index key.
// Key format: run:idx:time:{inverted_ts}:{id}.
func extractRunIDFromTimeKey(key string) string {
	const prefix = runIdxTimePrefix
	if len(key) <= len(prefix)+20 { // 19 digits + colon
		return ""
	}
	// Skip prefix and inverted timestamp (19 digits) and colon
	return key[len(prefix)+20:]
}

// extractRunIDFromShopKey extracts the run ID from a shop index key.
// Key format: run:idx:shop:{shop}:{inverted_ts}:{id}.
func extractRunIDFromShopKey(key, shop string) string {
	prefix := runIdxShopPrefix + shop + ":"
	if len(key) <= len(prefix)+20 {
		return ""
	}
	return key[len(prefix)+20:]
}
