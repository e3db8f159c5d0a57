// Package main provides a read-only inspector for the operational store.
//
// It opens the badger database directly, so run it against a stopped daemon
// or a copy of the data directory.
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Shelfwise/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Store Inspection ===")
	fmt.Println()

	if err := inspectRuns(db); err != nil {
		log.Fatalf("Error iterating runs: %v", err)
	}
	if err := inspectUnmapped(db); err != nil {
		log.Fatalf("Error iterating unmapped snapshots: %v", err)
	}
}

func inspectRuns(db *badger.DB) error {
	statusCounts := map[domain.RunStatus]int{}
	shopCounts := map[string]int{}
	total := 0
	shown := 0

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("run:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("run:")); it.ValidForPrefix([]byte("run:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Skip the key-only time and shop indexes
			if strings.HasPrefix(key, "run:idx:") {
				continue
			}

			err := item.Value(func(val []byte) error {
				var run domain.ProcessingRun
				if err := json.Unmarshal(val, &run); err != nil {
					return err
				}

				total++
				statusCounts[run.Status]++
				shopCounts[run.Shop]++

				// Primary keys iterate in id order, so this is a sample,
				// not the newest runs
				if shown < 5 {
					shown++
					fmt.Printf("Run: %s\n", run.ID)
					fmt.Printf("  Shop: %s\n", run.Shop)
					fmt.Printf("  Status: %s\n", run.Status)
					fmt.Printf("  Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
					fmt.Printf("  Processed: %d  Mapped: %d  Unmapped: %d  Errors: %d\n",
						run.Stats.TotalProcessed, run.Stats.TotalMapped,
						run.Stats.TotalUnmapped, run.Stats.TotalErrors)
					fmt.Println()
				}
				return nil
			})
			if err != nil {
				log.Printf("Error reading run %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println("=== Run Summary ===")
	fmt.Printf("Total runs: %d\n", total)
	for status, n := range statusCounts {
		fmt.Printf("  %s: %d\n", status, n)
	}
	fmt.Printf("Shops with runs: %d\n", len(shopCounts))
	for shop, n := range shopCounts {
		fmt.Printf("  %s: %d runs\n", shop, n)
	}
	fmt.Println()
	return nil
}

func inspectUnmapped(db *badger.DB) error {
	perShop := map[string]int{}
	totalEntries := 0
	totalProducts := 0

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("unmapped:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte("unmapped:")); it.ValidForPrefix([]byte("unmapped:")); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(val []byte) error {
				var entry domain.UnmappedCategory
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}

				totalEntries++
				totalProducts += entry.Count
				perShop[entry.Shop]++
				return nil
			})
			if err != nil {
				log.Printf("Error reading unmapped entry %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println("=== Unmapped Snapshot Summary ===")
	fmt.Printf("Queue entries: %d\n", totalEntries)
	fmt.Printf("Products affected: %d\n", totalProducts)
	for shop, n := range perShop {
		fmt.Printf("  %s: %d categories\n", shop, n)
	}
	return nil
}
