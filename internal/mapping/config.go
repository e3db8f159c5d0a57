package mapping

import (
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

// Config holds the matching knobs the engine reads once at load time.
//
// Each tier carries a threshold its result must meet to win, and the rule
// tiers additionally carry the confidence value a winning result reports.
// The fuzzy tier has no fixed confidence: its similarity score is the
// confidence. MinConfidence is a global floor applied on top of every tier
// threshold.
type Config struct {
	ExactConfidence   float64 `json:"exact_confidence"`
	RegexConfidence   float64 `json:"regex_confidence"`
	SynonymConfidence float64 `json:"synonym_confidence"`

	ExactThreshold   float64 `json:"exact_threshold"`
	RegexThreshold   float64 `json:"regex_threshold"`
	SynonymThreshold float64 `json:"synonym_threshold"`
	FuzzyThreshold   float64 `json:"fuzzy_threshold"`

	MinConfidence float64 `json:"min_confidence"`

	// SynonymsPath optionally overrides the built-in synonym table with a
	// YAML file.
	SynonymsPath string `json:"synonyms_path,omitempty"`

	// FuzzyMemoSize bounds the similarity memo cache.
	FuzzyMemoSize int `json:"fuzzy_memo_size"`
}

// DefaultConfig returns the stock matching configuration. Trust decreases
// tier by tier: exact > regex > synonym > fuzzy.
func DefaultConfig() Config {
	return Config{
		ExactConfidence:   1.0,
		RegexConfidence:   0.95,
		SynonymConfidence: 0.85,
		ExactThreshold:    1.0,
		RegexThreshold:    0.9,
		SynonymThreshold:  0.8,
		FuzzyThreshold:    0.65,
		MinConfidence:     0.5,
		FuzzyMemoSize:     4096,
	}
}

// Validate checks value ranges and the tier ordering.
func (c Config) Validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"exact_confidence", c.ExactConfidence},
		{"regex_confidence", c.RegexConfidence},
		{"synonym_confidence", c.SynonymConfidence},
		{"exact_threshold", c.ExactThreshold},
		{"regex_threshold", c.RegexThreshold},
		{"synonym_threshold", c.SynonymThreshold},
		{"fuzzy_threshold", c.FuzzyThreshold},
		{"min_confidence", c.MinConfidence},
	} {
		if v.value < 0 || v.value > 1 {
			return domainerrors.Validationf("%s must be between 0 and 1, got %v", v.name, v.value)
		}
	}

	if c.ExactThreshold < c.RegexThreshold ||
		c.RegexThreshold < c.SynonymThreshold ||
		c.SynonymThreshold < c.FuzzyThreshold {
		return domainerrors.Validation("matching thresholds must not increase from exact to fuzzy")
	}

	if c.ExactConfidence < c.ExactThreshold {
		return domainerrors.Validation("exact_confidence below exact_threshold, the exact tier could never win")
	}
	if c.RegexConfidence < c.RegexThreshold {
		return domainerrors.Validation("regex_confidence below regex_threshold, the regex tier could never win")
	}
	if c.SynonymConfidence < c.SynonymThreshold {
		return domainerrors.Validation("synonym_confidence below synonym_threshold, the synonym tier could never win")
	}

	if c.FuzzyMemoSize < 0 {
		return domainerrors.Validation("fuzzy_memo_size must not be negative")
	}

	return nil
}
