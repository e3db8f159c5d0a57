package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

// Unmapped snapshot key prefix. One key per queue entry:
// unmapped:{shop}:{originalCategory} -> UnmappedCategory JSON.
// The original category goes into the key verbatim; entries are decoded from
// the value, never parsed back out of the key.
const unmappedPrefix = "unmapped:"

// SaveUnmapped replaces the persisted unmapped snapshot for one shop. The
// pipeline calls this after every run, so an empty entries slice clears the
// shop's snapshot once all its categories have rules.
func (s *Store) SaveUnmapped(ctx context.Context, shop string, entries []domain.UnmappedCategory) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if shop == "" {
		return domainerrors.Validation("shop is required")
	}

	shopPrefix := []byte(unmappedPrefix + shop + ":")

	err := s.db.Update(func(txn *badger.Txn) error {
		// Collect stale keys first; deleting while iterating invalidates the iterator.
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = shopPrefix

		var stale [][]byte
		it := txn.NewIterator(opts)
		for it.Seek(shopPrefix); it.ValidForPrefix(shopPrefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("clearing stale entry: %w", err)
			}
		}

		for _, entry := range entries {
			if entry.OriginalCategory == "" {
				continue
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshaling entry %q: %w", entry.OriginalCategory, err)
			}

			key := []byte(unmappedPrefix + shop + ":" + entry.OriginalCategory)
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("setting entry %q: %w", entry.OriginalCategory, err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("saving unmapped snapshot for shop %s: %w", shop, err)
	}

	return nil
}

// ListUnmapped retrieves the persisted unmapped snapshot, for one shop or for
// all shops when shop is empty. Entries come back sorted by count descending,
// the same order the engine reports its live queue.
func (s *Store) ListUnmapped(ctx context.Context, shop string) ([]domain.UnmappedCategory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(unmappedPrefix)
	if shop != "" {
		prefix = []byte(unmappedPrefix + shop + ":")
	}

	var entries []domain.UnmappedCategory

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry domain.UnmappedCategory
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decoding entry %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing unmapped entries: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		if entries[i].Shop != entries[j].Shop {
			return entries[i].Shop < entries[j].Shop
		}
		return entries[i].OriginalCategory < entries[j].OriginalCategory
	})

	return entries, nil
}

// DeleteUnmapped removes one persisted unmapped entry once an operator has
// resolved it. Returns a not-found error when the entry does not exist so the
// admin surface can answer 404 instead of silently succeeding.
func (s *Store) DeleteUnmapped(ctx context.Context, shop, originalCategory string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if shop == "" || originalCategory == "" {
		return domainerrors.Validation("shop and original category are required")
	}

	key := []byte(unmappedPrefix + shop + ":" + originalCategory)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.NotFoundf("no unmapped entry %q for shop %s", originalCategory, shop)
		}
		return fmt.Errorf("deleting unmapped entry %q for shop %s: %w", originalCategory, shop, err)
	}

	return nil
}
