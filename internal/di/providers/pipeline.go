package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/shard"
)

// ProvideProcessor provides the ingestion pipeline processor.
func ProvideProcessor(i do.Injector) (*pipeline.Processor, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	engine := do.MustInvoke[*mapping.Engine](i)
	registry := do.MustInvoke[*normalizer.Registry](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	shardCfg := shard.DefaultConfig()
	shardCfg.ShardSizeBytes = int64(cfg.Shard.SizeMB) << 20
	shardCfg.MemoryLimitBytes = uint64(cfg.Shard.MemoryLimitMB) << 20
	shardCfg.MemoryPressure = cfg.Shard.MemoryPressure
	shardCfg.QueueDepth = cfg.Shard.QueueDepth

	return pipeline.NewProcessor(engine, registry, storeHandle.Store, pipeline.Config{
		InputDir:  cfg.Pipeline.InputDir,
		OutputDir: cfg.Pipeline.OutputDir,
		BatchSize: cfg.Pipeline.BatchSize,
		Shard:     shardCfg,
	}, log.Logger)
}
