// Package shard streams canonical products into category-partitioned JSONL
// files with size-based rotation, plus a flat catalog index and a metadata
// summary per run.
package shard

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"encoding/json/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

const (
	byCategoryDir    = "by-category"
	indexBase        = "products.index"
	metadataFileName = "metadata.json"
	shardExt         = ".jsonl"
	rotationStamp    = "20060102T150405"

	// Memory sampling after writes is throttled; ReadMemStats is not free.
	sampleInterval = 250 * time.Millisecond
	gcCooldown     = 5 * time.Second
)

// Config tunes one writer instance. Zero fields fall back to defaults.
type Config struct {
	// ShardSizeBytes is the per-file rotation ceiling.
	ShardSizeBytes int64

	// MemoryLimitBytes is the advisory process heap ceiling.
	MemoryLimitBytes uint64

	// MemoryPressure is the fraction of the limit that triggers a
	// collection hint.
	MemoryPressure float64

	// QueueDepth is the per-slug channel buffer; a full queue blocks the
	// producer.
	QueueDepth int
}

// DefaultConfig returns the production writer settings.
func DefaultConfig() Config {
	return Config{
		ShardSizeBytes:   64 << 20,
		MemoryLimitBytes: 512 << 20,
		MemoryPressure:   0.85,
		QueueDepth:       256,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ShardSizeBytes <= 0 {
		c.ShardSizeBytes = def.ShardSizeBytes
	}
	if c.MemoryLimitBytes == 0 {
		c.MemoryLimitBytes = def.MemoryLimitBytes
	}
	if c.MemoryPressure <= 0 || c.MemoryPressure > 1 {
		c.MemoryPressure = def.MemoryPressure
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = def.QueueDepth
	}
	return c
}

// job is one unit of work for a slug goroutine: either a serialized line or
// a flush barrier.
type job struct {
	line    []byte
	barrier chan struct{}
}

// slugWriter owns one shard stream. Exactly one goroutine consumes the
// channel and touches the file handle, so rotation can never race an
// in-flight write.
type slugWriter struct {
	slug    string // empty for the index stream
	root    string
	relBase string // slash-form path under root, without extension
	ceiling int64  // 0 disables rotation

	ch     chan job
	done   chan struct{}
	logger *slog.Logger

	// Owned by the run goroutine; read by Close only after done is closed.
	file        *os.File
	curRel      string
	fileBytes   int64
	fileRecords int
	seq         int
	total       int
	files       []ShardFile
	err         error
}

func (sw *slugWriter) run() {
	defer close(sw.done)
	for j := range sw.ch {
		if j.barrier != nil {
			close(j.barrier)
			continue
		}
		sw.write(j.line)
	}
	sw.closeFile()
}

func (sw *slugWriter) write(line []byte) {
	if sw.file == nil {
		if err := sw.open(); err != nil {
			sw.fail(err)
			return
		}
	}

	n, err := sw.file.Write(line)
	if err != nil {
		sw.fail(fmt.Errorf("write %s: %w", sw.curRel, err))
		return
	}
	sw.fileBytes += int64(n)
	sw.fileRecords++
	sw.total++

	if sw.ceiling > 0 && sw.fileBytes >= sw.ceiling {
		sw.rotate()
	}
}

func (sw *slugWriter) open() error {
	rel := sw.relBase + shardExt
	if sw.seq > 0 {
		rel = fmt.Sprintf("%s-%s-%d%s", sw.relBase, time.Now().UTC().Format(rotationStamp), sw.seq, shardExt)
	}

	full := filepath.Join(sw.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create shard dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open shard %s: %w", rel, err)
	}

	sw.file = f
	sw.curRel = rel
	sw.fileBytes = 0
	sw.fileRecords = 0
	return nil
}

// rotate closes and syncs the active file; the next write opens the
// suffixed replacement. Running inside the owning goroutine means no write
// can land between the two, so nothing is ever lost across the boundary.
func (sw *slugWriter) rotate() {
	closed := sw.curRel
	sw.closeFile()
	sw.seq++
	sw.logger.Debug("shard rotated", "slug", sw.slug, "closed", closed, "rotation", sw.seq)
}

func (sw *slugWriter) closeFile() {
	if sw.file == nil {
		return
	}
	if err := sw.file.Sync(); err != nil {
		sw.err = domainerrors.Join(sw.err, fmt.Errorf("sync %s: %w", sw.curRel, err))
	}
	if err := sw.file.Close(); err != nil {
		sw.err = domainerrors.Join(sw.err, fmt.Errorf("close %s: %w", sw.curRel, err))
	}
	sw.files = append(sw.files, ShardFile{
		Slug:    sw.slug,
		Path:    sw.curRel,
		Records: sw.fileRecords,
		Bytes:   sw.fileBytes,
	})
	sw.file = nil
}

func (sw *slugWriter) fail(err error) {
	sw.err = domainerrors.Join(sw.err, err)
	sw.logger.Error("shard write failed", "slug", sw.slug, "error", err)
}

// Writer streams products into per-slug shard files and the flat catalog
// index. Writes to one slug stay in arrival order; writes to different
// slugs may interleave freely. Close must be called to flush everything.
type Writer struct {
	root   string
	shop   string
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	shards map[string]*slugWriter
	index  *slugWriter
	closed bool

	start time.Time

	memMu      sync.Mutex
	lastSample time.Time
	lastGC     time.Time
	peakMemory uint64
}

// NewWriter creates the output layout under dir and starts the index stream.
func NewWriter(dir, shop string, cfg Config, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, domainerrors.Validation("output directory is required")
	}
	if shop == "" {
		return nil, domainerrors.Validation("shop is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Join(dir, byCategoryDir), 0o755); err != nil {
		return nil, fmt.Errorf("create output layout: %w", err)
	}

	w := &Writer{
		root:   dir,
		shop:   shop,
		cfg:    cfg.withDefaults(),
		logger: logger,
		shards: make(map[string]*slugWriter),
		start:  time.Now(),
	}
	w.index = w.newSlugWriter("", indexBase, 0) // the index never rotates
	return w, nil
}

func (w *Writer) newSlugWriter(slug, relBase string, ceiling int64) *slugWriter {
	sw := &slugWriter{
		slug:    slug,
		root:    w.root,
		relBase: relBase,
		ceiling: ceiling,
		ch:      make(chan job, w.cfg.QueueDepth),
		done:    make(chan struct{}),
		logger:  w.logger,
	}
	go sw.run()
	return sw
}

// Write enqueues one product line for its slug's shard plus one entry for
// the catalog index. A full queue blocks until the slug goroutine drains;
// nothing is dropped or reordered.
func (w *Writer) Write(p *domain.CanonicalProduct) error {
	if p == nil {
		return domainerrors.Validation("product is required")
	}
	if p.CategorySlug == "" {
		return domainerrors.Validationf("product %s has no category slug", p.CanonicalID)
	}

	line, err := marshalLine(p)
	if err != nil {
		return fmt.Errorf("serialize product %s: %w", p.CanonicalID, err)
	}
	indexLine, err := marshalLine(p.ToIndexEntry())
	if err != nil {
		return fmt.Errorf("serialize index entry %s: %w", p.CanonicalID, err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return domainerrors.Conflict("shard writer is closed")
	}
	sw, ok := w.shards[p.CategorySlug]
	if !ok {
		sw = w.newSlugWriter(p.CategorySlug, path.Join(byCategoryDir, p.CategorySlug), w.cfg.ShardSizeBytes)
		w.shards[p.CategorySlug] = sw
	}
	w.mu.Unlock()

	sw.ch <- job{line: line}
	w.index.ch <- job{line: indexLine}

	w.sampleMemory()
	return nil
}

// Flush blocks until every record enqueued so far has reached the file
// layer. The pipeline calls it between batches so a batch is fully written
// before the next begins.
func (w *Writer) Flush() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	writers := w.allWriters()
	w.mu.Unlock()

	// Fire all barriers, then await them as a group.
	barriers := make([]chan struct{}, len(writers))
	for i, sw := range writers {
		barriers[i] = make(chan struct{})
		sw.ch <- job{barrier: barriers[i]}
	}
	for _, b := range barriers {
		<-b
	}
}

// Close drains and closes every shard stream and the index, writes the
// metadata document, and returns the final stats.
func (w *Writer) Close() (domain.ShardingStats, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return domain.ShardingStats{}, domainerrors.Conflict("shard writer is closed")
	}
	w.closed = true
	writers := w.allWriters()
	w.mu.Unlock()

	for _, sw := range writers {
		close(sw.ch)
	}
	var errs error
	for _, sw := range writers {
		<-sw.done
		errs = domainerrors.Join(errs, sw.err)
	}

	stats := w.collectStats()
	if err := WriteMetadata(filepath.Join(w.root, metadataFileName), w.buildMetadata(stats)); err != nil {
		errs = domainerrors.Join(errs, err)
	}

	w.logger.Info("shard writer closed",
		"shop", w.shop,
		"products", stats.TotalProducts,
		"shard_files", stats.TotalShardFiles,
		"elapsed_ms", stats.ElapsedMs,
	)
	return stats, errs
}

// allWriters snapshots the slug writers plus the index; callers hold w.mu.
func (w *Writer) allWriters() []*slugWriter {
	writers := make([]*slugWriter, 0, len(w.shards)+1)
	for _, sw := range w.shards {
		writers = append(writers, sw)
	}
	return append(writers, w.index)
}

func (w *Writer) collectStats() domain.ShardingStats {
	stats := domain.ShardingStats{
		PerCategory:     make(map[string]int, len(w.shards)),
		ElapsedMs:       time.Since(w.start).Milliseconds(),
		PeakMemoryBytes: w.peak(),
	}
	for slug, sw := range w.shards {
		stats.TotalProducts += sw.total
		stats.TotalShardFiles += len(sw.files)
		if sw.total > 0 {
			stats.PerCategory[slug] = sw.total
		}
	}
	return stats
}

func (w *Writer) buildMetadata(stats domain.ShardingStats) *Metadata {
	meta := &Metadata{
		Version:   FormatVersion,
		Shop:      w.shop,
		CreatedAt: time.Now().UTC(),
		Stats:     stats,
	}
	for _, sw := range w.shards {
		meta.Shards = append(meta.Shards, sw.files...)
	}
	sort.Slice(meta.Shards, func(i, j int) bool {
		return meta.Shards[i].Path < meta.Shards[j].Path
	})
	if len(w.index.files) > 0 {
		meta.Index = w.index.files[0]
	}
	return meta
}

// sampleMemory tracks the run's heap peak and asks the runtime for a
// collection pass under pressure. Advisory only, never blocks beyond the
// collection itself.
func (w *Writer) sampleMemory() {
	w.memMu.Lock()
	defer w.memMu.Unlock()

	if time.Since(w.lastSample) < sampleInterval {
		return
	}
	w.lastSample = time.Now()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > w.peakMemory {
		w.peakMemory = m.Alloc
	}

	limit := uint64(float64(w.cfg.MemoryLimitBytes) * w.cfg.MemoryPressure)
	if m.Alloc < limit || time.Since(w.lastGC) < gcCooldown {
		return
	}
	w.lastGC = time.Now()
	w.logger.Debug("memory pressure, requesting collection",
		"alloc_bytes", m.Alloc,
		"limit_bytes", w.cfg.MemoryLimitBytes,
	)
	runtime.GC()
}

// peak takes one final unthrottled sample so short runs still report a
// meaningful number.
func (w *Writer) peak() uint64 {
	w.memMu.Lock()
	defer w.memMu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Alloc > w.peakMemory {
		w.peakMemory = m.Alloc
	}
	return w.peakMemory
}

func marshalLine(v any) ([]byte, error) {
	line, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}
