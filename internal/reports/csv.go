package reports

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

func writeMappingReport(path string, rows []*MappingRow) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"original_category", "mapped_path", "slug", "status", "confidence", "rule_id", "products"})
	for _, row := range rows {
		records = append(records, []string{
			row.OriginalCategory,
			strings.Join(row.Path, " > "),
			row.Slug,
			string(row.Status),
			strconv.FormatFloat(row.Confidence, 'f', 2, 64),
			row.RuleID,
			strconv.Itoa(row.Products),
		})
	}
	return writeCSV(path, records)
}

func writeUnmappedSummary(path string, entries []domain.UnmappedCategory) error {
	records := make([][]string, 0, len(entries)+1)
	records = append(records, []string{"shop", "original_category", "count", "first_seen", "samples", "best_attempt_path", "best_attempt_confidence"})
	for _, entry := range entries {
		bestPath, bestConf := "", ""
		if entry.BestAttempt != nil {
			bestPath = strings.Join(entry.BestAttempt.Path, " > ")
			bestConf = strconv.FormatFloat(entry.BestAttempt.Confidence, 'f', 2, 64)
		}
		records = append(records, []string{
			entry.Shop,
			entry.OriginalCategory,
			strconv.Itoa(entry.Count),
			entry.FirstSeen.UTC().Format(time.RFC3339),
			joinSamples(entry.Samples),
			bestPath,
			bestConf,
		})
	}
	return writeCSV(path, records)
}

// writeRejectSummary aggregates rejects by message so a handful of systematic
// feed problems do not drown in per-record noise.
func writeRejectSummary(path string, rejects []Reject) error {
	type group struct {
		message string
		count   int
		example domain.ProcessingError
	}
	byMessage := make(map[string]*group)
	var order []string
	for _, reject := range rejects {
		g, ok := byMessage[reject.Error.Message]
		if !ok {
			g = &group{message: reject.Error.Message, example: reject.Error}
			byMessage[reject.Error.Message] = g
			order = append(order, reject.Error.Message)
		}
		g.count++
	}
	groups := make([]*group, 0, len(order))
	for _, msg := range order {
		groups = append(groups, byMessage[msg])
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].message < groups[j].message
	})

	records := make([][]string, 0, len(groups)+1)
	records = append(records, []string{"message", "count", "example_file", "example_line", "example_product"})
	for _, g := range groups {
		records = append(records, []string{
			g.message,
			strconv.Itoa(g.count),
			g.example.SourceFile,
			strconv.Itoa(g.example.Line),
			g.example.ProductName,
		})
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return f.Close()
}

func joinSamples(samples []domain.UnmappedSample) string {
	names := make([]string, 0, len(samples))
	for _, s := range samples {
		names = append(names, s.ProductName)
	}
	return strings.Join(names, "; ")
}
