package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

// ProvideRuleStore provides the per-shop mapping rule store.
func ProvideRuleStore(i do.Injector) (*rules.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return rules.NewStore(cfg.Mapping.RulesDir)
}

// ProvideTaxonomyIndex provides the canonical category index.
func ProvideTaxonomyIndex(i do.Injector) (*taxonomy.Index, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	tree, err := taxonomy.LoadOrDefault(cfg.Mapping.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	index := taxonomy.NewIndex(tree)

	log.Info("Taxonomy loaded", "categories", index.Size())

	return index, nil
}

// ProvideEngine provides the category mapping engine.
func ProvideEngine(i do.Injector) (*mapping.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	index := do.MustInvoke[*taxonomy.Index](i)
	ruleStore := do.MustInvoke[*rules.Store](i)

	engineCfg := mapping.DefaultConfig()
	engineCfg.MinConfidence = cfg.Mapping.MinConfidence
	engineCfg.FuzzyThreshold = cfg.Mapping.FuzzyThreshold
	engineCfg.RegexThreshold = cfg.Mapping.RegexThreshold
	engineCfg.SynonymThreshold = cfg.Mapping.SynonymThreshold
	engineCfg.FuzzyMemoSize = cfg.Mapping.FuzzyMemoSize
	engineCfg.SynonymsPath = cfg.Mapping.SynonymsPath

	return mapping.Load(engineCfg, index, ruleStore, log.Logger)
}

// ProvideRegistry provides the per-shop normalizer registry.
func ProvideRegistry(i do.Injector) (*normalizer.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	engine := do.MustInvoke[*mapping.Engine](i)

	registry := normalizer.NewRegistry(func(shop string) normalizer.Normalizer {
		return normalizer.NewGeneric(shop, engine, log.Logger)
	})

	return registry, nil
}
