// Package pipeline coordinates shop ingestion runs: input discovery, batched
// normalization, category sharding, statistics, and operator reports.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/reports"
	"github.com/shelfwise/shelfwise-pipeline/internal/shard"
)

// DefaultBatchSize is how many records one normalization batch carries when
// neither the config nor the run options say otherwise.
const DefaultBatchSize = 500

// RunRecorder persists finished runs and unmapped snapshots for the admin
// surface. A nil recorder disables persistence.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *domain.ProcessingRun) error
	SaveUnmapped(ctx context.Context, shop string, entries []domain.UnmappedCategory) error
}

// Config carries processor-wide defaults; individual runs can override the
// directories and batch size through Options.
type Config struct {
	InputDir  string
	OutputDir string
	BatchSize int
	Shard     shard.Config
}

// Options configures one run. Zero values fall back to the processor
// defaults.
type Options struct {
	InputDir         string
	OutputDir        string
	BatchSize        int
	Limit            int    // stop consuming input after this many records, 0 means no limit
	RunID            string // pre-assigned run id; one is generated when empty
	DryRun           bool
	Strict           bool
	EnableValidation bool
	Reports          bool
	Verbose          bool
	OnProgress       func(*Progress)
}

// Processor runs shop ingestions end to end. One Processor serves many runs;
// each run owns its own shard writer and progress tracker.
type Processor struct {
	engine   *mapping.Engine
	registry *normalizer.Registry
	recorder RunRecorder
	cfg      Config
	logger   *slog.Logger
}

// NewProcessor creates a Processor. The recorder may be nil.
func NewProcessor(engine *mapping.Engine, registry *normalizer.Registry, recorder RunRecorder, cfg Config, logger *slog.Logger) (*Processor, error) {
	if engine == nil {
		return nil, domainerrors.Validation("mapping engine is required")
	}
	if registry == nil {
		return nil, domainerrors.Validation("normalizer registry is required")
	}
	if cfg.InputDir == "" {
		return nil, domainerrors.Validation("input directory is required")
	}
	if cfg.OutputDir == "" {
		return nil, domainerrors.Validation("output directory is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		engine:   engine,
		registry: registry,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ProcessShop ingests every export file under <input>/<shop>/. Per-record
// failures accumulate in the result; only setup problems and context
// cancellation return an error.
func (p *Processor) ProcessShop(ctx context.Context, shop string, opts Options) (*domain.ProcessingResult, error) {
	if shop == "" {
		return nil, domainerrors.Validation("shop is required")
	}
	opts = p.withDefaults(opts)
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	result := &domain.ProcessingResult{
		RunID:     opts.RunID,
		Shop:      shop,
		DryRun:    opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With("run_id", result.RunID, "shop", shop)
	tracker := NewProgressTracker(opts.OnProgress)

	files, err := inputFiles(opts.InputDir, shop)
	if err != nil {
		return nil, err
	}
	logger.Info("run started", "files", len(files), "dry_run", opts.DryRun, "strict", opts.Strict)
	p.markRunning(ctx, result, opts)

	stats := &result.Stats
	counts := countRecords(files)
	stats.FileCounts = counts
	for _, n := range counts {
		stats.TotalRecords += n
	}

	if opts.DryRun {
		result.Success = true
		p.finish(ctx, result, opts, tracker, logger)
		return result, nil
	}

	outDir := filepath.Join(opts.OutputDir, shop)
	writer, err := shard.NewWriter(outDir, shop, p.cfg.Shard, p.logger)
	if err != nil {
		return nil, err
	}
	result.OutputDir = outDir

	tracker.SetPhase(PhaseProcessing)
	tracker.SetTotal(stats.TotalRecords)

	run := &shopRun{
		norm:      p.registry.For(shop),
		writer:    writer,
		collector: reports.NewCollector(),
		tracker:   tracker,
		result:    result,
		logger:    logger,
		opts:      opts,
	}

	if err := run.stream(ctx, files, counts); err != nil {
		if _, closeErr := writer.Close(); closeErr != nil {
			logger.Error("closing shard writer after abort", "error", closeErr)
		}
		return nil, err
	}

	tracker.SetPhase(PhaseFinalizing)
	shardStats, closeErr := writer.Close()
	stats.Sharding = shardStats
	if closeErr != nil {
		logger.Error("closing shard writer", "error", closeErr)
		run.addError(domain.ProcessingError{
			Message:   "closing shard writer: " + closeErr.Error(),
			Timestamp: time.Now().UTC(),
		})
	}
	if err := p.engine.FlushUsage(); err != nil {
		logger.Warn("flushing rule usage counters", "error", err)
	}
	result.Unmapped = p.engine.UnmappedForShop(shop)

	result.Success = closeErr == nil
	if opts.Strict && len(result.Unmapped) > 0 {
		result.Success = false
		logger.Warn("unmapped categories remain in strict mode", "count", len(result.Unmapped))
	}

	if opts.Reports {
		tracker.SetPhase(PhaseReporting)
		paths, err := reports.Write(reports.Options{
			Dir:    filepath.Join(outDir, "reports"),
			Shop:   shop,
			Config: snapshot(opts),
		}, result, run.collector)
		result.ReportPaths = paths
		if err != nil {
			logger.Error("writing reports", "error", err)
			run.addError(domain.ProcessingError{
				Message:   "writing reports: " + err.Error(),
				Timestamp: time.Now().UTC(),
			})
		}
	}

	p.finish(ctx, result, opts, tracker, logger)
	return result, nil
}

// ProcessMultiple runs shops sequentially and aggregates their results. In
// strict mode the first failed shop stops the batch.
func (p *Processor) ProcessMultiple(ctx context.Context, shops []string, opts Options) ([]*domain.ProcessingResult, error) {
	if len(shops) == 0 {
		return nil, domainerrors.Validation("at least one shop is required")
	}
	// A pre-assigned run id cannot apply to more than one shop.
	opts.RunID = ""

	results := make([]*domain.ProcessingResult, 0, len(shops))
	for _, shop := range shops {
		result, err := p.ProcessShop(ctx, shop, opts)
		if err != nil {
			if ctx.Err() != nil {
				return results, err
			}
			p.logger.Error("shop run failed", "shop", shop, "error", err)
			result = p.failedRun(ctx, shop, opts, err)
		}
		results = append(results, result)

		if opts.Strict && !result.Success {
			return results, domainerrors.StrictModef("shop %s failed, remaining shops skipped", shop)
		}
	}
	return results, nil
}

func (p *Processor) withDefaults(opts Options) Options {
	if opts.InputDir == "" {
		opts.InputDir = p.cfg.InputDir
	}
	if opts.OutputDir == "" {
		opts.OutputDir = p.cfg.OutputDir
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = p.cfg.BatchSize
	}
	return opts
}

func (p *Processor) finish(ctx context.Context, result *domain.ProcessingResult, opts Options, tracker *ProgressTracker, logger *slog.Logger) {
	result.FinishedAt = time.Now().UTC()
	result.Stats.DurationMs = result.FinishedAt.Sub(result.StartedAt).Milliseconds()
	tracker.SetPhase(PhaseComplete)

	logger.Info("run finished",
		"success", result.Success,
		"records", result.Stats.TotalRecords,
		"processed", result.Stats.TotalProcessed,
		"mapped", result.Stats.TotalMapped,
		"unmapped", result.Stats.TotalUnmapped,
		"errors", result.Stats.TotalErrors,
		"skipped", result.Stats.TotalSkipped,
		"duration_ms", result.Stats.DurationMs,
	)
	p.persist(ctx, result, opts)
}

// markRunning persists an in-flight run document so the admin surface can
// see the run before it reaches a terminal status. The save at finish
// overwrites it.
func (p *Processor) markRunning(ctx context.Context, result *domain.ProcessingResult, opts Options) {
	if p.recorder == nil {
		return
	}
	run := &domain.ProcessingRun{
		ID:        result.RunID,
		Shop:      result.Shop,
		Status:    domain.RunStatusRunning,
		StartedAt: result.StartedAt,
		DryRun:    result.DryRun,
		Strict:    opts.Strict,
	}
	if err := p.recorder.SaveRun(ctx, run); err != nil {
		p.logger.Error("persisting run start", "run_id", result.RunID, "error", err)
	}
}

// persist writes the run document and unmapped snapshot, when a recorder is
// attached. Failures are logged, never fatal; the run itself already
// happened.
func (p *Processor) persist(ctx context.Context, result *domain.ProcessingResult, opts Options) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.SaveRun(ctx, runRecord(result, opts)); err != nil {
		p.logger.Error("persisting run", "run_id", result.RunID, "error", err)
	}
	if len(result.Unmapped) > 0 {
		if err := p.recorder.SaveUnmapped(ctx, result.Shop, result.Unmapped); err != nil {
			p.logger.Error("persisting unmapped snapshot", "shop", result.Shop, "error", err)
		}
	}
}

// failedRun synthesizes a result for a shop whose run never got going, so a
// batch over many shops accounts for every one of them.
func (p *Processor) failedRun(ctx context.Context, shop string, opts Options, cause error) *domain.ProcessingResult {
	now := time.Now().UTC()
	result := &domain.ProcessingResult{
		RunID:      uuid.NewString(),
		Shop:       shop,
		DryRun:     opts.DryRun,
		StartedAt:  now,
		FinishedAt: now,
		Errors: []domain.ProcessingError{{
			Message:   cause.Error(),
			Timestamp: now,
		}},
	}
	result.Stats.TotalErrors = 1
	p.persist(ctx, result, opts)
	return result
}

// runRecord flattens a result into the persisted run document.
func runRecord(result *domain.ProcessingResult, opts Options) *domain.ProcessingRun {
	status := domain.RunStatusCompleted
	if !result.Success {
		status = domain.RunStatusFailed
	}
	finished := result.FinishedAt
	return &domain.ProcessingRun{
		ID:            result.RunID,
		Shop:          result.Shop,
		Status:        status,
		StartedAt:     result.StartedAt,
		FinishedAt:    &finished,
		DryRun:        result.DryRun,
		Strict:        opts.Strict,
		Success:       result.Success,
		OutputDir:     result.OutputDir,
		Stats:         result.Stats,
		Errors:        result.Errors,
		UnmappedCount: len(result.Unmapped),
	}
}

// optionSnapshot is the run configuration echoed into the report summary.
type optionSnapshot struct {
	InputDir         string `json:"input_dir"`
	OutputDir        string `json:"output_dir"`
	BatchSize        int    `json:"batch_size"`
	Limit            int    `json:"limit,omitempty"`
	Strict           bool   `json:"strict,omitempty"`
	EnableValidation bool   `json:"enable_validation,omitempty"`
}

func snapshot(opts Options) optionSnapshot {
	return optionSnapshot{
		InputDir:         opts.InputDir,
		OutputDir:        opts.OutputDir,
		BatchSize:        opts.BatchSize,
		Limit:            opts.Limit,
		Strict:           opts.Strict,
		EnableValidation: opts.EnableValidation,
	}
}

// shopRun bundles the per-run collaborators so the streaming helpers do not
// drag five parameters each.
type shopRun struct {
	norm      normalizer.Normalizer
	writer    *shard.Writer
	collector *reports.Collector
	tracker   *ProgressTracker
	result    *domain.ProcessingResult
	logger    *slog.Logger
	opts      Options
	consumed  int
}

// stream feeds every input file through the normalizer in batches. It
// returns an error only on context cancellation; everything else is
// accounted on the result and the run keeps going.
func (r *shopRun) stream(ctx context.Context, files []string, counts map[string]int) error {
	stats := &r.result.Stats
	limitReached := false

	for _, file := range files {
		base := filepath.Base(file)
		if limitReached {
			stats.TotalSkipped += counts[base]
			continue
		}

		records, err := readRecords(file)
		if err != nil {
			r.logger.Error("unreadable input file", "file", base, "error", err)
			r.addError(domain.ProcessingError{
				SourceFile: base,
				Message:    err.Error(),
				Timestamp:  time.Now().UTC(),
			})
			continue
		}

		offset := 0
		for offset < len(records) {
			if err := ctx.Err(); err != nil {
				return err
			}

			end := min(offset+r.opts.BatchSize, len(records))
			if r.opts.Limit > 0 {
				remaining := r.opts.Limit - r.consumed
				if remaining <= 0 {
					break
				}
				end = min(end, offset+remaining)
			}

			r.processBatch(ctx, base, records[offset:end], offset)
			r.consumed += end - offset
			offset = end
			r.writer.Flush()
		}

		if offset < len(records) {
			stats.TotalSkipped += len(records) - offset
			limitReached = true
			r.logger.Info("record limit reached", "limit", r.opts.Limit, "file", base)
		}
	}
	return nil
}

func (r *shopRun) processBatch(ctx context.Context, sourceFile string, batch []normalizer.RawRecord, offset int) {
	stats := &r.result.Stats
	cfg := normalizer.Config{
		EnableValidation: r.opts.EnableValidation,
		StrictMapping:    r.opts.Strict,
		Verbose:          r.opts.Verbose,
		SourceFile:       sourceFile,
		LineOffset:       offset,
	}

	for res := range r.norm.Normalize(ctx, batch, cfg) {
		r.tracker.Increment(sourceFile)

		if !res.Success() {
			perr := domain.ProcessingError{
				SourceFile:  sourceFile,
				Line:        res.Line,
				ProductName: productName(res.Raw),
				Message:     strings.Join(res.Errors, "; "),
				Timestamp:   time.Now().UTC(),
			}
			r.addError(perr)
			r.collector.RecordReject(res.Raw, perr)
			continue
		}

		if err := r.writer.Write(res.Product); err != nil {
			r.addError(domain.ProcessingError{
				SourceFile: sourceFile,
				Line:       res.Line,
				Message:    "writing shard: " + err.Error(),
				Timestamp:  time.Now().UTC(),
			})
			continue
		}

		stats.TotalProcessed++
		if res.Product.MappingStatus.IsMapped() {
			stats.TotalMapped++
		} else {
			stats.TotalUnmapped++
		}
		r.collector.RecordProduct(res.Product)
	}
}

func (r *shopRun) addError(perr domain.ProcessingError) {
	r.result.Stats.TotalErrors++
	r.result.Errors = append(r.result.Errors, perr)
	r.tracker.AddError()
}

// productName pulls a display name out of a raw record for error reporting,
// best effort.
func productName(raw normalizer.RawRecord) string {
	for _, key := range []string{"title", "name", "denumire", "product_name"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
