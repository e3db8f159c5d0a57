// Package reports renders the operator artifacts of a processing run:
// mapping coverage, the unmapped queue, rejected records, a JSON run
// summary, and an XLSX review workbook.
package reports

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"encoding/json/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

// Options configures one report run.
type Options struct {
	Dir    string // report directory, created when missing
	Shop   string
	Config any // run configuration echoed into the summary
}

// Write renders every report into opts.Dir and returns the written paths.
// Artifacts from a previous run of the same shop are overwritten.
func Write(opts Options, result *domain.ProcessingResult, c *Collector) ([]string, error) {
	if opts.Dir == "" {
		return nil, domainerrors.Validation("report directory is required")
	}
	if result == nil {
		return nil, domainerrors.Validation("processing result is required")
	}
	if c == nil {
		c = NewCollector()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	steps := []struct {
		name string
		fn   func(string) error
	}{
		{"mapping-report.csv", func(path string) error { return writeMappingReport(path, c.Rows()) }},
		{"unmapped.jsonl", func(path string) error { return writeLines(path, result.Unmapped) }},
		{"unmapped-summary.csv", func(path string) error { return writeUnmappedSummary(path, result.Unmapped) }},
		{"rejects.jsonl", func(path string) error { return writeLines(path, c.Rejects()) }},
		{"rejects-summary.csv", func(path string) error { return writeRejectSummary(path, c.Rejects()) }},
		{"processing-summary.json", func(path string) error { return writeSummary(path, opts, result, c) }},
		{"review-workbook.xlsx", func(path string) error { return writeWorkbook(path, result, c) }},
	}

	paths := make([]string, 0, len(steps))
	for _, step := range steps {
		path := filepath.Join(opts.Dir, step.name)
		if err := step.fn(path); err != nil {
			return paths, fmt.Errorf("write %s: %w", step.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeLines writes one JSON document per line.
func writeLines[T any](path string, items []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, item := range items {
		if err := json.MarshalWrite(w, item); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// runSummary is the shape of processing-summary.json.
type runSummary struct {
	Shop               string                       `json:"shop"`
	RunID              string                       `json:"run_id"`
	Success            bool                         `json:"success"`
	DryRun             bool                         `json:"dry_run,omitempty"`
	StartedAt          time.Time                    `json:"started_at"`
	FinishedAt         time.Time                    `json:"finished_at,omitzero"`
	GeneratedAt        time.Time                    `json:"generated_at"`
	Stats              domain.ProcessingStats       `json:"stats"`
	StatusTotals       map[domain.MappingStatus]int `json:"status_totals"`
	Coverage           []*MappingRow                `json:"coverage"`
	UnmappedCategories int                          `json:"unmapped_categories"`
	Rejects            int                          `json:"rejects"`
	Config             any                          `json:"config,omitempty"`
}

func writeSummary(path string, opts Options, result *domain.ProcessingResult, c *Collector) error {
	summary := runSummary{
		Shop:               result.Shop,
		RunID:              result.RunID,
		Success:            result.Success,
		DryRun:             result.DryRun,
		StartedAt:          result.StartedAt,
		FinishedAt:         result.FinishedAt,
		GeneratedAt:        time.Now().UTC(),
		Stats:              result.Stats,
		StatusTotals:       c.StatusTotals(),
		Coverage:           c.Rows(),
		UnmappedCategories: len(result.Unmapped),
		Rejects:            len(c.Rejects()),
		Config:             opts.Config,
	}
	if summary.Shop == "" {
		summary.Shop = opts.Shop
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.MarshalWrite(f, summary); err != nil {
		return err
	}
	return f.Close()
}
