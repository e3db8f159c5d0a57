// Package main provides a tool to seed a data directory with the built-in
// mapping configuration.
//
// It writes the default taxonomy and synonym table as YAML next to the
// database, and a starter rule document per shop, so operators can edit the
// files instead of starting from nothing.
//
// Usage:
//
//	seedrules -data-path ~/Shelfwise/data -shops mega,profi
//	seedrules -force
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

var (
	shopsFlag  = flag.String("shops", "mega,profi,carrefour", "Comma-separated shops to seed starter rule files for")
	confidence = flag.Float64("confidence", 1.0, "Confidence assigned to starter rules")
	force      = flag.Bool("force", false, "Overwrite files that already exist")
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Printf("Seeding mapping configuration under: %s\n", cfg.Data.BasePath)

	taxonomyPath := cfg.Mapping.TaxonomyPath
	if taxonomyPath == "" {
		taxonomyPath = filepath.Join(cfg.Data.BasePath, "taxonomy.yaml")
	}
	if err := seedTaxonomy(taxonomyPath); err != nil {
		log.Fatalf("Failed to seed taxonomy: %v", err)
	}

	synonymsPath := cfg.Mapping.SynonymsPath
	if synonymsPath == "" {
		synonymsPath = filepath.Join(cfg.Data.BasePath, "synonyms.yaml")
	}
	if err := seedSynonyms(synonymsPath); err != nil {
		log.Fatalf("Failed to seed synonyms: %v", err)
	}

	if err := seedRuleFiles(cfg.Mapping.RulesDir); err != nil {
		log.Fatalf("Failed to seed rules: %v", err)
	}

	fmt.Println("\nDone. Point the daemon at the same data path to pick the files up.")
}

func seedTaxonomy(path string) error {
	if skipExisting(path) {
		return nil
	}
	if err := taxonomy.Save(path, taxonomy.DefaultTree()); err != nil {
		return err
	}
	fmt.Printf("  taxonomy: %s\n", path)
	return nil
}

func seedSynonyms(path string) error {
	if skipExisting(path) {
		return nil
	}

	table := struct {
		Synonyms []mapping.SynonymEntry `yaml:"synonyms"`
	}{Synonyms: mapping.DefaultSynonyms()}

	data, err := yaml.Marshal(table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("  synonyms: %s (%d entries)\n", path, len(table.Synonyms))
	return nil
}

func seedRuleFiles(dir string) error {
	store, err := rules.NewStore(dir)
	if err != nil {
		return err
	}

	for _, shop := range strings.Split(*shopsFlag, ",") {
		shop = strings.TrimSpace(shop)
		if shop == "" {
			continue
		}
		path := filepath.Join(dir, shop+".json")
		if skipExisting(path) {
			continue
		}

		ruleSet := rules.StarterRules(shop, *confidence)
		if err := store.Save(shop, ruleSet); err != nil {
			return err
		}
		fmt.Printf("  rules:    %s (%d rules)\n", path, len(ruleSet))
	}
	return nil
}

// skipExisting reports whether path exists and -force is off, printing a
// notice when it skips.
func skipExisting(path string) bool {
	if *force {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  skip:     %s already exists (use -force to overwrite)\n", path)
		return true
	}
	return false
}
