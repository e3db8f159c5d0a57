package rules

import (
	"time"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	"github.com/shelfwise/shelfwise-pipeline/internal/id"
)

// starterPatterns are the exact-match category strings most retail exports
// share, mapped into the default taxonomy. Seeded rule sets start here and
// grow through the learning loop.
var starterPatterns = []struct {
	pattern string
	path    []string
}{
	{"Lactate", []string{"Lactate & Ouă"}},
	{"Lapte", []string{"Lactate & Ouă", "Lapte"}},
	{"Iaurt", []string{"Lactate & Ouă", "Iaurt & Kefir"}},
	{"Oua", []string{"Lactate & Ouă", "Ouă"}},
	{"Carne", []string{"Carne & Pește"}},
	{"Mezeluri", []string{"Carne & Pește", "Mezeluri"}},
	{"Fructe", []string{"Fructe & Legume", "Fructe Proaspete"}},
	{"Legume", []string{"Fructe & Legume", "Legume Proaspete"}},
	{"Paine", []string{"Pâine & Patiserie", "Pâine"}},
	{"Bauturi", []string{"Băuturi"}},
	{"Apa", []string{"Băuturi", "Apă"}},
	{"Cafea", []string{"Băuturi", "Cafea"}},
	{"Bere", []string{"Băuturi", "Bere"}},
	{"Vin", []string{"Băuturi", "Vin"}},
	{"Dulciuri", []string{"Dulciuri & Snacks"}},
	{"Congelate", []string{"Congelate"}},
	{"Detergenti", []string{"Curățenie & Menaj", "Detergenți Rufe"}},
}

// StarterRules builds a seed rule set for one shop. Every rule is an enabled
// exact match with system provenance.
func StarterRules(shop string, confidence float64) []domain.CategoryRule {
	now := time.Now()
	ruleSet := make([]domain.CategoryRule, 0, len(starterPatterns))
	for _, p := range starterPatterns {
		ruleSet = append(ruleSet, domain.CategoryRule{
			ID:          id.MustGenerate("rule"),
			Shop:        shop,
			Pattern:     p.pattern,
			PatternType: domain.PatternExact,
			TargetPath:  p.path,
			Confidence:  confidence,
			Provenance:  domain.ProvenanceSystem,
			CreatedAt:   now,
			Enabled:     true,
		})
	}
	return ruleSet
}
