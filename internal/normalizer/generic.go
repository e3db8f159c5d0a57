package normalizer

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	"github.com/shelfwise/shelfwise-pipeline/internal/id"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/validation"
)

// genericVersion is stamped into the audit block of every product the
// generic normalizer emits. Bump on changes that alter output.
const genericVersion = "generic/1.2.0"

// Generic normalizes the standard vendor export schema: flat JSON objects
// with Romanian or English field names. Shops with exotic exports register
// their own implementation; everything else goes through here.
type Generic struct {
	shop      string
	engine    *mapping.Engine
	validator *validation.Validator
	logger    *slog.Logger
}

// NewGeneric creates a generic normalizer bound to one shop.
func NewGeneric(shop string, engine *mapping.Engine, logger *slog.Logger) *Generic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generic{
		shop:      shop,
		engine:    engine,
		validator: validation.New(),
		logger:    logger,
	}
}

// Name identifies the implementation in logs and audit trails.
func (g *Generic) Name() string { return "generic" }

// Version is stamped into each product's audit block.
func (g *Generic) Version() string { return genericVersion }

// Normalize lazily turns records into per-record results. Bad records yield
// error results, they never stop the sequence; only context cancellation
// does.
func (g *Generic) Normalize(ctx context.Context, records []RawRecord, cfg Config) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for i, raw := range records {
			if ctx.Err() != nil {
				return
			}
			if !yield(g.normalizeOne(raw, cfg.LineOffset+i+1, cfg)) {
				return
			}
		}
	}
}

func (g *Generic) normalizeOne(raw RawRecord, line int, cfg Config) (res Result) {
	// One hostile record must not take down the batch.
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("normalizer panic recovered",
				"shop", g.shop,
				"source", cfg.SourceFile,
				"line", line,
				"panic", r,
			)
			res = reject(raw, line, fmt.Sprintf("panic while normalizing record: %v", r))
		}
	}()

	title := firstString(raw, "title", "name", "denumire", "product_name")
	if title == "" {
		return reject(raw, line, "missing product title")
	}

	priceValue, ok := firstValue(raw, "price", "pret", "current_price")
	if !ok {
		return reject(raw, line, "missing price")
	}
	price, currencyHint, err := parsePrice(priceValue)
	if err != nil {
		return reject(raw, line, err.Error())
	}

	currency := strings.ToUpper(firstString(raw, "currency", "moneda"))
	if currency == "" {
		currency = currencyHint
	}
	if currency == "" {
		currency = "RON"
	}

	brand := firstString(raw, "brand", "marca", "producator")
	category := categoryText(raw, "category", "categorie", "category_path", "breadcrumbs")

	mapped := g.engine.MapCategory(domain.MappingContext{
		Shop:             g.shop,
		OriginalCategory: category,
		ProductName:      title,
		Brand:            brand,
	})

	if cfg.StrictMapping && !mapped.Status.IsMapped() {
		return reject(raw, line, fmt.Sprintf("strict mapping: category %q unresolved (status %s)", category, mapped.Status))
	}

	canonicalID, err := id.Generate("prod")
	if err != nil {
		return reject(raw, line, "generating canonical id: "+err.Error())
	}

	product := &domain.CanonicalProduct{
		CanonicalID:      canonicalID,
		Shop:             g.shop,
		ShopProductID:    firstString(raw, "id", "product_id", "sku", "cod"),
		SourceFile:       cfg.SourceFile,
		FetchedAt:        fetchedAt(raw),
		Title:            title,
		Brand:            brand,
		Description:      cleanDescription(firstString(raw, "description", "descriere")),
		CategoryPath:     mapped.Path,
		CategorySlug:     mapped.Slug,
		MappingStatus:    mapped.Status,
		OriginalCategory: category,
		Price:            price,
		Currency:         currency,
		InStock:          coerceStock(firstValue(raw, "in_stock", "stock", "stoc", "availability", "disponibilitate")),
		ProductURL:       firstString(raw, "url", "link", "product_url"),
		Audit: domain.MappingAudit{
			NormalizerVersion: genericVersion,
			RuleID:            mapped.RuleID,
			Confidence:        mapped.Confidence,
			Notes:             mapped.Notes,
		},
	}

	if v, ok := firstValue(raw, "images", "imagini", "image", "imagine"); ok {
		product.Images = stringList(v)
	}

	if size, unit := parsePack(firstString(raw, "quantity", "cantitate", "gramaj", "pack")); unit != "" {
		product.PackSize = size
		product.PackUnit = unit
		product.UnitPrice = unitPrice(price, size, unit)
	}

	if v, ok := firstValue(raw, "original_price", "pret_vechi", "old_price"); ok {
		if originalPrice, _, err := parsePrice(v); err == nil && originalPrice > price {
			product.OriginalPrice = originalPrice
			product.DiscountPct = math.Round((1-price/originalPrice)*10000) / 100
			product.Attributes.OnPromotion = true
		}
	}
	if v, ok := firstValue(raw, "on_promotion", "promotie", "promo"); ok && coerceBool(v) {
		product.Attributes.OnPromotion = true
	}
	product.Attributes.CountryOfOrigin = firstString(raw, "country_of_origin", "tara_de_origine", "origin")
	if v, ok := firstValue(raw, "dietary", "etichete"); ok {
		product.Attributes.Dietary = stringList(v)
	}
	if v, ok := firstValue(raw, "allergens", "alergeni"); ok {
		product.Attributes.Allergens = stringList(v)
	}

	if cfg.EnableValidation {
		if err := g.validator.Validate(product); err != nil {
			return reject(raw, line, "validation failed: "+err.Error())
		}
	}

	if cfg.Verbose {
		g.logger.Debug("record normalized",
			"shop", g.shop,
			"title", title,
			"category", category,
			"slug", mapped.Slug,
			"status", mapped.Status,
		)
	}

	return Result{Product: product, Line: line}
}

func reject(raw RawRecord, line int, msgs ...string) Result {
	return Result{Raw: raw, Line: line, Errors: msgs}
}

func fetchedAt(raw RawRecord) time.Time {
	if s := firstString(raw, "fetched_at", "scraped_at", "data"); s != "" {
		if ts, ok := parseTime(s); ok {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}
