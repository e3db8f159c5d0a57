package domain

import "time"

// RunStatus represents the lifecycle state of a processing run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ProcessingError is one recovered per-record failure. The run continues past
// these; they surface in the result and the rejects report.
type ProcessingError struct {
	SourceFile  string    `json:"source_file"`
	Line        int       `json:"line,omitempty"`
	ProductName string    `json:"product_name,omitempty"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// ShardingStats aggregates shard writer activity for one run.
type ShardingStats struct {
	TotalProducts   int            `json:"total_products"`
	TotalShardFiles int            `json:"total_shard_files"`
	PerCategory     map[string]int `json:"per_category,omitempty"`
	ElapsedMs       int64          `json:"elapsed_ms"`
	PeakMemoryBytes uint64         `json:"peak_memory_bytes"`
}

// ProcessingStats aggregates one shop run.
type ProcessingStats struct {
	TotalRecords   int            `json:"total_records"`   // Pre-count across input files
	TotalProcessed int            `json:"total_processed"` // Successfully normalized
	TotalMapped    int            `json:"total_mapped"`    // mapping_status == ok / manual-override
	TotalUnmapped  int            `json:"total_unmapped"`  // Any other mapping status
	TotalErrors    int            `json:"total_errors"`    // Per-record failures
	TotalSkipped   int            `json:"total_skipped"`   // Dropped by the record limit
	FileCounts     map[string]int `json:"file_counts,omitempty"`
	DurationMs     int64          `json:"duration_ms"`
	Sharding       ShardingStats  `json:"sharding"`
}

// ProcessingResult is the operator-visible outcome of one shop run. Per-record
// problems never escalate to an error return; they land in Errors here.
type ProcessingResult struct {
	RunID       string             `json:"run_id"`
	Shop        string             `json:"shop"`
	Success     bool               `json:"success"`
	DryRun      bool               `json:"dry_run,omitempty"`
	Stats       ProcessingStats    `json:"stats"`
	OutputDir   string             `json:"output_dir,omitempty"`
	ReportPaths []string           `json:"report_paths,omitempty"`
	Unmapped    []UnmappedCategory `json:"unmapped,omitempty"`
	Errors      []ProcessingError  `json:"errors,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// ProcessingRun is the persisted record of one run, kept in the operational
// store so the admin surface can list history after the fact.
type ProcessingRun struct {
	ID         string     `json:"id"`
	Shop       string     `json:"shop"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Options snapshot
	DryRun bool `json:"dry_run,omitempty"`
	Strict bool `json:"strict,omitempty"`

	// Outcome (denormalized for quick display)
	Success       bool              `json:"success"`
	OutputDir     string            `json:"output_dir,omitempty"`
	Stats         ProcessingStats   `json:"stats"`
	Errors        []ProcessingError `json:"errors,omitempty"`
	UnmappedCount int               `json:"unmapped_count"`
}

// IsFinished returns true once the run reached a terminal status.
func (r *ProcessingRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
