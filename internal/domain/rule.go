package domain

import "time"

// PatternType selects which matching tier a rule participates in.
type PatternType string

const (
	PatternExact   PatternType = "exact"
	PatternRegex   PatternType = "regex"
	PatternSynonym PatternType = "synonym"
	PatternFuzzy   PatternType = "fuzzy"
)

// RuleProvenance records where a rule came from.
type RuleProvenance string

const (
	ProvenanceSystem   RuleProvenance = "system"   // Shipped with the shop's seed rule set
	ProvenanceAdmin    RuleProvenance = "admin"    // Created through the review surface
	ProvenanceLearning RuleProvenance = "learning" // Learned from a resolved unmapped entry
)

// CategoryRule is one per-shop classification rule. Rules for a shop are
// ordered; newly learned rules sit at the front so they outrank older, more
// general ones.
type CategoryRule struct {
	ID          string         `json:"id"`
	Shop        string         `json:"shop" validate:"required"`
	Pattern     string         `json:"pattern" validate:"required"`
	PatternType PatternType    `json:"pattern_type" validate:"required,oneof=exact regex synonym fuzzy"`
	TargetPath  []string       `json:"target_path" validate:"required,min=1"`
	Confidence  float64        `json:"confidence" validate:"gte=0,lte=1"`
	Provenance  RuleProvenance `json:"provenance" validate:"required,oneof=system admin learning"`
	CreatedAt   time.Time      `json:"created_at"`
	UsageCount  int            `json:"usage_count"`
	Enabled     bool           `json:"enabled"`
}
