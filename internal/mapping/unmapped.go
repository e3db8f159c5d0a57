package mapping

import (
	"sort"
	"time"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

// recordUnmapped parks a failed mapping attempt on the review queue, keyed
// by shop plus the raw category string. Repeat occurrences bump the count
// and may add a product sample; the strongest sub-threshold attempt is kept
// for the review surface. Caller holds e.mu.
func (e *Engine) recordUnmapped(mc domain.MappingContext, attempt *domain.CategoryMappingResult) {
	key := mc.Shop + ":" + mc.OriginalCategory
	entry, ok := e.unmapped[key]
	if !ok {
		entry = &domain.UnmappedCategory{
			Shop:             mc.Shop,
			OriginalCategory: mc.OriginalCategory,
			FirstSeen:        time.Now().UTC(),
		}
		e.unmapped[key] = entry
	}

	entry.Count++
	entry.AddSample(mc.ProductName, mc.Brand)
	if attempt != nil && (entry.BestAttempt == nil || attempt.Confidence > entry.BestAttempt.Confidence) {
		entry.BestAttempt = attempt
	}
}

// UnmappedQueue returns a snapshot of every queue entry, most frequent
// first. Entries are copies; the live queue keeps accumulating behind them.
func (e *Engine) UnmappedQueue() []domain.UnmappedCategory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotUnmapped("")
}

// UnmappedForShop returns the queue entries for one shop.
func (e *Engine) UnmappedForShop(shop string) []domain.UnmappedCategory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotUnmapped(shop)
}

func (e *Engine) snapshotUnmapped(shop string) []domain.UnmappedCategory {
	out := make([]domain.UnmappedCategory, 0, len(e.unmapped))
	for _, entry := range e.unmapped {
		if shop != "" && entry.Shop != shop {
			continue
		}
		out = append(out, copyUnmapped(entry))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Shop != out[j].Shop {
			return out[i].Shop < out[j].Shop
		}
		return out[i].OriginalCategory < out[j].OriginalCategory
	})

	return out
}

// ClearUnmappedEntry removes one queue entry once an operator has resolved
// it. Returns false if no such entry exists.
func (e *Engine) ClearUnmappedEntry(shop, originalCategory string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := shop + ":" + originalCategory
	if _, ok := e.unmapped[key]; !ok {
		return false
	}
	delete(e.unmapped, key)
	return true
}

func copyUnmapped(entry *domain.UnmappedCategory) domain.UnmappedCategory {
	out := *entry
	out.Samples = append([]domain.UnmappedSample(nil), entry.Samples...)
	if entry.BestAttempt != nil {
		attempt := *entry.BestAttempt
		attempt.Path = clonePath(attempt.Path)
		out.BestAttempt = &attempt
	}
	return out
}
