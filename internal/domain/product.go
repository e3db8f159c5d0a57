// Package domain contains the core business entities for the product ingestion pipeline.
package domain

import "time"

// MappingStatus describes how a product's category assignment was resolved.
type MappingStatus string

const (
	MappingStatusOK             MappingStatus = "ok"              // Matched by an exact/regex/synonym rule
	MappingStatusFallbackParent MappingStatus = "fallback-parent" // Broad keyword fallback to a parent category
	MappingStatusFuzzyMatch     MappingStatus = "fuzzy-match"     // Accepted by similarity scoring
	MappingStatusManualOverride MappingStatus = "manual-override" // Applied by an admin-created rule
	MappingStatusUnmapped       MappingStatus = "unmapped"        // No tier resolved; parked under "Other"
)

// IsMapped returns true if the status counts as a confident mapping.
func (s MappingStatus) IsMapped() bool {
	return s == MappingStatusOK || s == MappingStatusManualOverride
}

// CanonicalProduct is the normalized product record every downstream consumer
// relies on. A Normalizer creates it once from one raw vendor record; it is
// never mutated after being handed to the shard writer.
type CanonicalProduct struct {
	CanonicalID   string    `json:"canonical_id" validate:"required"`
	Shop          string    `json:"shop" validate:"required"`
	ShopProductID string    `json:"shop_product_id,omitempty"`
	SourceFile    string    `json:"source_file,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`

	Title       string `json:"title" validate:"required,min=1,max=512"`
	Brand       string `json:"brand,omitempty" validate:"max=256"`
	Description string `json:"description,omitempty"`

	CategoryPath     []string      `json:"category_path" validate:"required,min=1"`
	CategorySlug     string        `json:"category_slug" validate:"required"`
	MappingStatus    MappingStatus `json:"mapping_status" validate:"required,oneof=ok fallback-parent fuzzy-match manual-override unmapped"`
	OriginalCategory string        `json:"original_category,omitempty"`

	Price         float64 `json:"price" validate:"gte=0"`
	Currency      string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	UnitPrice     float64 `json:"unit_price,omitempty" validate:"gte=0"`
	OriginalPrice float64 `json:"original_price,omitempty" validate:"gte=0"`
	DiscountPct   float64 `json:"discount_pct,omitempty" validate:"gte=0,lte=100"`

	PackSize float64 `json:"pack_size,omitempty" validate:"gte=0"`
	PackUnit string  `json:"pack_unit,omitempty"` // "g", "kg", "ml", "l", "buc"

	InStock bool `json:"in_stock"`

	Images     []string          `json:"images,omitempty" validate:"dive,url"`
	Attributes ProductAttributes `json:"attributes,omitempty"`
	ProductURL string            `json:"product_url,omitempty" validate:"omitempty,url"`

	Audit MappingAudit `json:"audit"`
}

// ProductAttributes carries optional descriptive flags scraped from the
// vendor page.
type ProductAttributes struct {
	CountryOfOrigin string   `json:"country_of_origin,omitempty"`
	Dietary         []string `json:"dietary,omitempty"` // "bio", "vegan", "gluten-free", ...
	Allergens       []string `json:"allergens,omitempty"`
	OnPromotion     bool     `json:"on_promotion,omitempty"`
}

// MappingAudit records how the category assignment came to be.
type MappingAudit struct {
	NormalizerVersion string  `json:"normalizer_version,omitempty"`
	RuleID            string  `json:"rule_id,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
	Notes             string  `json:"notes,omitempty"`
}

// IndexEntry is the minimal per-product record written to the flat catalog
// index so consumers can scan the whole catalog without opening every shard.
type IndexEntry struct {
	CanonicalID  string   `json:"canonical_id"`
	Shop         string   `json:"shop"`
	Title        string   `json:"title"`
	Brand        string   `json:"brand,omitempty"`
	CategorySlug string   `json:"category_slug"`
	CategoryPath []string `json:"category_path"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency,omitempty"`
	Images       []string `json:"images,omitempty"`
	InStock      bool     `json:"in_stock"`
}

// ToIndexEntry projects the product onto its catalog index record.
func (p *CanonicalProduct) ToIndexEntry() IndexEntry {
	return IndexEntry{
		CanonicalID:  p.CanonicalID,
		Shop:         p.Shop,
		Title:        p.Title,
		Brand:        p.Brand,
		CategorySlug: p.CategorySlug,
		CategoryPath: p.CategoryPath,
		Price:        p.Price,
		Currency:     p.Currency,
		Images:       p.Images,
		InStock:      p.InStock,
	}
}
