package domain

import "time"

// MaxUnmappedSamples caps how many distinct product samples one unmapped
// category entry accumulates for the review surface.
const MaxUnmappedSamples = 5

// MappingContext is the input to one category mapping attempt.
// It is never persisted.
type MappingContext struct {
	Shop             string `json:"shop"`
	OriginalCategory string `json:"original_category"`
	ProductName      string `json:"product_name,omitempty"`
	Brand            string `json:"brand,omitempty"`
	Hints            string `json:"hints,omitempty"` // Free text: breadcrumbs, page titles, etc.
}

// CategoryMappingResult is the outcome of one mapping attempt. It is folded
// into the product's mapping fields, or into an unmapped entry when no tier
// cleared its threshold.
type CategoryMappingResult struct {
	Path       []string      `json:"path"`
	Slug       string        `json:"slug"`
	Status     MappingStatus `json:"status"`
	Confidence float64       `json:"confidence"`
	RuleID     string        `json:"rule_id,omitempty"`
	Notes      string        `json:"notes,omitempty"`
}

// UnmappedSample is one example product recorded for an unmapped category.
type UnmappedSample struct {
	ProductName string `json:"product_name"`
	Brand       string `json:"brand,omitempty"`
}

// UnmappedCategory aggregates every occurrence of a category string that no
// matching tier could confidently resolve, keyed by (shop, original
// category). Operators review these entries and clear them by creating a
// rule.
type UnmappedCategory struct {
	Shop             string                 `json:"shop"`
	OriginalCategory string                 `json:"original_category"`
	Count            int                    `json:"count"`
	Samples          []UnmappedSample       `json:"samples,omitempty"`
	FirstSeen        time.Time              `json:"first_seen"`
	BestAttempt      *CategoryMappingResult `json:"best_attempt,omitempty"`
}

// Key returns the queue key for this entry.
func (u *UnmappedCategory) Key() string {
	return u.Shop + ":" + u.OriginalCategory
}

// AddSample records a product sample unless the name is already present or
// the sample list is full. Returns true if the sample was stored.
func (u *UnmappedCategory) AddSample(name, brand string) bool {
	if name == "" || len(u.Samples) >= MaxUnmappedSamples {
		return false
	}
	for _, s := range u.Samples {
		if s.ProductName == name {
			return false
		}
	}
	u.Samples = append(u.Samples, UnmappedSample{ProductName: name, Brand: brand})
	return true
}
