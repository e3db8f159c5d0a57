package reports

import (
	"sort"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
)

// MappingRow aggregates every product that resolved to the same category
// assignment from the same vendor string.
type MappingRow struct {
	OriginalCategory string               `json:"original_category"`
	Path             []string             `json:"path"`
	Slug             string               `json:"slug"`
	Status           domain.MappingStatus `json:"status"`
	Confidence       float64              `json:"confidence"`
	RuleID           string               `json:"rule_id,omitempty"`
	Products         int                  `json:"products"`
}

// Reject pairs a failed record with the error that rejected it.
type Reject struct {
	Error domain.ProcessingError `json:"error"`
	Raw   normalizer.RawRecord   `json:"raw,omitempty"`
}

// Collector accumulates mapping outcomes and rejected records over one run.
// It is owned by the run's goroutine and is not safe for concurrent use.
type Collector struct {
	rows    map[string]*MappingRow
	rejects []Reject
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{rows: make(map[string]*MappingRow)}
}

// RecordProduct folds one normalized product into the coverage table.
func (c *Collector) RecordProduct(p *domain.CanonicalProduct) {
	if p == nil {
		return
	}
	key := p.OriginalCategory + "\x00" + p.CategorySlug + "\x00" + string(p.MappingStatus)
	row, ok := c.rows[key]
	if !ok {
		row = &MappingRow{
			OriginalCategory: p.OriginalCategory,
			Path:             p.CategoryPath,
			Slug:             p.CategorySlug,
			Status:           p.MappingStatus,
			Confidence:       p.Audit.Confidence,
			RuleID:           p.Audit.RuleID,
		}
		c.rows[key] = row
	}
	row.Products++
}

// RecordReject stores a failed record alongside its error.
func (c *Collector) RecordReject(raw normalizer.RawRecord, perr domain.ProcessingError) {
	c.rejects = append(c.rejects, Reject{Error: perr, Raw: raw})
}

// Rows returns the coverage table ordered by product count, busiest first.
func (c *Collector) Rows() []*MappingRow {
	rows := make([]*MappingRow, 0, len(c.rows))
	for _, row := range c.rows {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Products != rows[j].Products {
			return rows[i].Products > rows[j].Products
		}
		if rows[i].OriginalCategory != rows[j].OriginalCategory {
			return rows[i].OriginalCategory < rows[j].OriginalCategory
		}
		return rows[i].Slug < rows[j].Slug
	})
	return rows
}

// Rejects returns the rejected records in arrival order.
func (c *Collector) Rejects() []Reject {
	return c.rejects
}

// StatusTotals sums products per mapping status across the coverage table.
func (c *Collector) StatusTotals() map[domain.MappingStatus]int {
	totals := make(map[domain.MappingStatus]int)
	for _, row := range c.rows {
		totals[row.Status] += row.Products
	}
	return totals
}
