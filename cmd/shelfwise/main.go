// Package main provides the one-shot batch ingestion CLI.
//
// It runs the same pipeline as the daemon but without the HTTP surface or the
// operational store, so it can run while the daemon holds the database lock.
//
// Usage:
//
//	shelfwise -shops mega,profi -reports
//	shelfwise -dry-run -limit 100 mega
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/shard"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

var (
	shopsFlag = flag.String("shops", "", "Comma-separated shop ids to ingest (default: every shop under the input dir)")
	dryRun    = flag.Bool("dry-run", false, "Map and validate without writing shards")
	strict    = flag.Bool("strict", false, "Fail a shop with unmapped categories and stop the batch at the first failure")
	validate  = flag.Bool("validate", false, "Schema-validate canonical records")
	reports   = flag.Bool("reports", false, "Render operator reports after each shop")
	limit     = flag.Int("limit", 0, "Stop each shop after this many records (0 = no limit)")
	verbose   = flag.Bool("verbose", false, "Log every record mapping")
	quiet     = flag.Bool("quiet", false, "Suppress per-phase progress output")
)

func main() {
	// LoadConfig parses the flag set, picking up the flags above alongside
	// the shared config flags.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
		Format:      "pretty",
	})

	shops, err := resolveShops(cfg.Pipeline.InputDir)
	if err != nil {
		log.Error("resolving shops", "error", err)
		os.Exit(1)
	}
	if len(shops) == 0 {
		fmt.Fprintf(os.Stderr, "No shops to ingest; pass -shops or create <input>/<shop>/ directories under %s\n", cfg.Pipeline.InputDir)
		os.Exit(1)
	}

	processor, err := buildProcessor(cfg, log)
	if err != nil {
		log.Error("building pipeline", "error", err)
		os.Exit(1)
	}

	opts := pipeline.Options{
		Limit:            *limit,
		DryRun:           *dryRun,
		Strict:           *strict,
		EnableValidation: *validate,
		Reports:          *reports,
		Verbose:          *verbose,
	}
	if !*quiet {
		opts.OnProgress = renderProgress
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	started := time.Now()
	results, err := processor.ProcessMultiple(ctx, shops, opts)
	for _, result := range results {
		printResult(result)
	}
	if err != nil {
		log.Error("batch failed", "error", err)
		os.Exit(1)
	}

	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}

	fmt.Printf("\n=== Batch Complete ===\n")
	fmt.Printf("Shops: %d\n", len(results))
	fmt.Printf("Failed: %d\n", failed)
	fmt.Printf("Duration: %s\n", time.Since(started).Round(time.Millisecond))

	if failed > 0 {
		os.Exit(1)
	}
}

// resolveShops returns the -shops list or the positional arguments, falling
// back to every subdirectory of the input root.
func resolveShops(inputDir string) ([]string, error) {
	if *shopsFlag != "" {
		var shops []string
		for _, shop := range strings.Split(*shopsFlag, ",") {
			if shop = strings.TrimSpace(shop); shop != "" {
				shops = append(shops, shop)
			}
		}
		return shops, nil
	}
	if args := flag.Args(); len(args) > 0 {
		return args, nil
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	var shops []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			shops = append(shops, entry.Name())
		}
	}
	sort.Strings(shops)
	return shops, nil
}

// buildProcessor wires the mapping engine and pipeline by hand. No store is
// attached, so CLI runs do not appear in the daemon's run history.
func buildProcessor(cfg *config.Config, log *logger.Logger) (*pipeline.Processor, error) {
	ruleStore, err := rules.NewStore(cfg.Mapping.RulesDir)
	if err != nil {
		return nil, err
	}

	tree, err := taxonomy.LoadOrDefault(cfg.Mapping.TaxonomyPath)
	if err != nil {
		return nil, err
	}
	index := taxonomy.NewIndex(tree)

	engineCfg := mapping.DefaultConfig()
	engineCfg.MinConfidence = cfg.Mapping.MinConfidence
	engineCfg.FuzzyThreshold = cfg.Mapping.FuzzyThreshold
	engineCfg.RegexThreshold = cfg.Mapping.RegexThreshold
	engineCfg.SynonymThreshold = cfg.Mapping.SynonymThreshold
	engineCfg.FuzzyMemoSize = cfg.Mapping.FuzzyMemoSize
	engineCfg.SynonymsPath = cfg.Mapping.SynonymsPath

	engine, err := mapping.Load(engineCfg, index, ruleStore, log.Logger)
	if err != nil {
		return nil, err
	}

	registry := normalizer.NewRegistry(func(shop string) normalizer.Normalizer {
		return normalizer.NewGeneric(shop, engine, log.Logger)
	})

	shardCfg := shard.DefaultConfig()
	shardCfg.ShardSizeBytes = int64(cfg.Shard.SizeMB) << 20
	shardCfg.MemoryLimitBytes = uint64(cfg.Shard.MemoryLimitMB) << 20
	shardCfg.MemoryPressure = cfg.Shard.MemoryPressure
	shardCfg.QueueDepth = cfg.Shard.QueueDepth

	return pipeline.NewProcessor(engine, registry, nil, pipeline.Config{
		InputDir:  cfg.Pipeline.InputDir,
		OutputDir: cfg.Pipeline.OutputDir,
		BatchSize: cfg.Pipeline.BatchSize,
		Shard:     shardCfg,
	}, log.Logger)
}

func renderProgress(p *pipeline.Progress) {
	if p.Total > 0 {
		fmt.Printf("[%s] %d/%d - %s\n", p.Phase, p.Current, p.Total, p.CurrentItem)
		return
	}
	fmt.Printf("[%s] %s\n", p.Phase, p.CurrentItem)
}

func printResult(result *domain.ProcessingResult) {
	fmt.Printf("\n=== %s ===\n", result.Shop)
	if result.DryRun {
		fmt.Printf("Mode: dry run\n")
	}
	fmt.Printf("Duration: %s\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	fmt.Printf("Processed: %d/%d\n", result.Stats.TotalProcessed, result.Stats.TotalRecords)
	fmt.Printf("Mapped: %d\n", result.Stats.TotalMapped)
	fmt.Printf("Unmapped categories: %d\n", len(result.Unmapped))
	fmt.Printf("Errors: %d\n", result.Stats.TotalErrors)
	if result.Stats.TotalSkipped > 0 {
		fmt.Printf("Skipped by limit: %d\n", result.Stats.TotalSkipped)
	}
	if result.OutputDir != "" {
		fmt.Printf("Output: %s\n", result.OutputDir)
	}
	for _, path := range result.ReportPaths {
		fmt.Printf("Report: %s\n", path)
	}
	if !result.Success {
		fmt.Printf("Status: FAILED\n")
	}
}
