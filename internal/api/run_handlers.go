package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
)

// DefaultRunListLimit is how many runs a history listing returns when the
// client does not say.
const DefaultRunListLimit = 50

func (s *Server) registerRunRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "startRun",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs",
		Summary:     "Start a shop run",
		Description: "Starts processing one shop's export files in the background and returns the run in its running state. Poll the run by ID for the outcome.",
		Tags:        []string{"Runs"},
	}, s.handleStartRun)

	huma.Register(s.api, huma.Operation{
		OperationID: "startBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/runs/batch",
		Summary:     "Start a batch of shop runs",
		Description: "Processes the given shops sequentially in the background. Run documents appear in the history as each shop starts.",
		Tags:        []string{"Runs"},
	}, s.handleStartBatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRuns",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs",
		Summary:     "List runs",
		Description: "Returns run history, newest first, optionally filtered by shop",
		Tags:        []string{"Runs"},
	}, s.handleListRuns)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRun",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{id}",
		Summary:     "Get run",
		Description: "Returns a run by ID",
		Tags:        []string{"Runs"},
	}, s.handleGetRun)
}

// === DTOs ===

type RunOptionsRequest struct {
	DryRun           bool `json:"dry_run,omitempty" doc:"Count and validate inputs without writing outputs"`
	Strict           bool `json:"strict,omitempty" doc:"Reject unmapped records and fail the run if any category stays unmapped"`
	EnableValidation bool `json:"enable_validation,omitempty" doc:"Run canonical product validation on every record"`
	Reports          bool `json:"reports,omitempty" doc:"Write operator reports next to the shard output"`
	Limit            int  `json:"limit,omitempty" minimum:"0" doc:"Stop after this many records, 0 means no limit"`
	BatchSize        int  `json:"batch_size,omitempty" minimum:"1" doc:"Records per normalization batch"`
}

type StartRunRequest struct {
	Shop string `json:"shop" minLength:"1" doc:"Shop whose input directory to process"`
	RunOptionsRequest
}

type StartRunInput struct {
	Body StartRunRequest
}

type StartBatchRequest struct {
	Shops []string `json:"shops" minItems:"1" doc:"Shops to process, in order"`
	RunOptionsRequest
}

type StartBatchInput struct {
	Body StartBatchRequest
}

type BatchRunResponse struct {
	Shops  []string `json:"shops" doc:"Shops accepted, in processing order"`
	Status string   `json:"status" doc:"Batch status at accept time"`
}

type BatchRunOutput struct {
	Body BatchRunResponse
}

type RunResponse struct {
	ID            string                   `json:"id" doc:"Run ID"`
	Shop          string                   `json:"shop" doc:"Shop this run processed"`
	Status        string                   `json:"status" doc:"running, completed, or failed"`
	StartedAt     time.Time                `json:"started_at" doc:"When the run started"`
	FinishedAt    *time.Time               `json:"finished_at,omitempty" doc:"When the run reached a terminal status"`
	DryRun        bool                     `json:"dry_run,omitempty" doc:"Whether outputs were skipped"`
	Strict        bool                     `json:"strict,omitempty" doc:"Whether strict mode was on"`
	Success       bool                     `json:"success" doc:"Terminal verdict, false while running"`
	OutputDir     string                   `json:"output_dir,omitempty" doc:"Where shard output landed"`
	Stats         domain.ProcessingStats   `json:"stats" doc:"Run statistics"`
	Errors        []domain.ProcessingError `json:"errors,omitempty" doc:"Recovered per-record failures"`
	UnmappedCount int                      `json:"unmapped_count" doc:"Unmapped categories left after the run"`
}

type RunOutput struct {
	Body RunResponse
}

type ListRunsInput struct {
	Shop  string `query:"shop" doc:"Only runs for this shop"`
	Limit int    `query:"limit" minimum:"1" maximum:"500" doc:"Maximum runs to return, defaults to 50"`
}

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs" doc:"Runs, newest first"`
}

type ListRunsOutput struct {
	Body ListRunsResponse
}

type GetRunInput struct {
	ID string `path:"id" doc:"Run ID"`
}

// === Handlers ===

func (s *Server) handleStartRun(_ context.Context, input *StartRunInput) (*RunOutput, error) {
	shop := strings.TrimSpace(input.Body.Shop)
	if shop == "" {
		return nil, domainerrors.Validation("shop is required")
	}
	if !s.runs.tryAcquire(shop) {
		return nil, domainerrors.Conflictf("a run for shop %s is already in flight", shop)
	}

	opts := runOptions(input.Body.RunOptionsRequest)
	opts.RunID = uuid.NewString()

	run := &domain.ProcessingRun{
		ID:        opts.RunID,
		Shop:      shop,
		Status:    domain.RunStatusRunning,
		StartedAt: time.Now().UTC(),
		DryRun:    opts.DryRun,
		Strict:    opts.Strict,
	}
	go s.executeRun(shop, opts, run.StartedAt)

	return &RunOutput{Body: mapRunResponse(run)}, nil
}

func (s *Server) handleStartBatch(_ context.Context, input *StartBatchInput) (*BatchRunOutput, error) {
	shops := make([]string, 0, len(input.Body.Shops))
	seen := make(map[string]bool, len(input.Body.Shops))
	for _, raw := range input.Body.Shops {
		shop := strings.TrimSpace(raw)
		if shop == "" {
			return nil, domainerrors.Validation("shop names must not be empty")
		}
		if seen[shop] {
			return nil, domainerrors.Validationf("duplicate shop %s in batch", shop)
		}
		seen[shop] = true
		shops = append(shops, shop)
	}

	if busy, ok := s.runs.tryAcquireAll(shops); !ok {
		return nil, domainerrors.Conflictf("a run for shop %s is already in flight", busy)
	}

	opts := runOptions(input.Body.RunOptionsRequest)
	go s.executeBatch(shops, opts)

	return &BatchRunOutput{Body: BatchRunResponse{
		Shops:  shops,
		Status: string(domain.RunStatusRunning),
	}}, nil
}

func (s *Server) handleListRuns(ctx context.Context, input *ListRunsInput) (*ListRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultRunListLimit
	}

	var (
		runs []*domain.ProcessingRun
		err  error
	)
	if input.Shop != "" {
		runs, err = s.store.ListShopRuns(ctx, input.Shop, limit)
	} else {
		runs, err = s.store.ListRuns(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	resp := make([]RunResponse, len(runs))
	for i, run := range runs {
		resp[i] = mapRunResponse(run)
	}
	return &ListRunsOutput{Body: ListRunsResponse{Runs: resp}}, nil
}

func (s *Server) handleGetRun(ctx context.Context, input *GetRunInput) (*RunOutput, error) {
	run, err := s.store.GetRun(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &RunOutput{Body: mapRunResponse(run)}, nil
}

// executeRun drives one shop run in the background; the request that started
// it is long gone by the time this finishes.
func (s *Server) executeRun(shop string, opts pipeline.Options, started time.Time) {
	defer s.runs.release(shop)

	ctx := context.Background()
	if _, err := s.processor.ProcessShop(ctx, shop, opts); err != nil {
		s.logger.Error("run failed before processing", "shop", shop, "run_id", opts.RunID, "error", err)
		s.recordFailedRun(ctx, shop, opts, started, err)
	}
}

func (s *Server) executeBatch(shops []string, opts pipeline.Options) {
	defer s.runs.release(shops...)

	if _, err := s.processor.ProcessMultiple(context.Background(), shops, opts); err != nil {
		s.logger.Error("batch run stopped", "shops", strings.Join(shops, ","), "error", err)
	}
}

// recordFailedRun persists a terminal document for a run the processor
// aborted during setup. The start endpoint already handed out the run ID, so
// polling it has to land on something.
func (s *Server) recordFailedRun(ctx context.Context, shop string, opts pipeline.Options, started time.Time, cause error) {
	if s.store == nil {
		return
	}
	now := time.Now().UTC()
	run := &domain.ProcessingRun{
		ID:         opts.RunID,
		Shop:       shop,
		Status:     domain.RunStatusFailed,
		StartedAt:  started,
		FinishedAt: &now,
		DryRun:     opts.DryRun,
		Strict:     opts.Strict,
		Errors: []domain.ProcessingError{{
			Message:   cause.Error(),
			Timestamp: now,
		}},
	}
	run.Stats.TotalErrors = 1
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.logger.Error("persisting failed run", "run_id", run.ID, "error", err)
	}
}

// === Mappers ===

func runOptions(req RunOptionsRequest) pipeline.Options {
	return pipeline.Options{
		DryRun:           req.DryRun,
		Strict:           req.Strict,
		EnableValidation: req.EnableValidation,
		Reports:          req.Reports,
		Limit:            req.Limit,
		BatchSize:        req.BatchSize,
	}
}

func mapRunResponse(run *domain.ProcessingRun) RunResponse {
	return RunResponse{
		ID:            run.ID,
		Shop:          run.Shop,
		Status:        string(run.Status),
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
		DryRun:        run.DryRun,
		Strict:        run.Strict,
		Success:       run.Success,
		OutputDir:     run.OutputDir,
		Stats:         run.Stats,
		Errors:        run.Errors,
		UnmappedCount: run.UnmappedCount,
	}
}

// runGate serializes runs per shop. Two concurrent runs over the same shop
// would interleave writes in the same output directory.
type runGate struct {
	mu     sync.Mutex
	active map[string]bool
}

func newRunGate() *runGate {
	return &runGate{active: make(map[string]bool)}
}

func (g *runGate) tryAcquire(shop string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[shop] {
		return false
	}
	g.active[shop] = true
	return true
}

// tryAcquireAll locks every shop or none. On conflict it returns the shop
// that was already busy.
func (g *runGate) tryAcquireAll(shops []string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, shop := range shops {
		if g.active[shop] {
			return shop, false
		}
	}
	for _, shop := range shops {
		g.active[shop] = true
	}
	return "", true
}

func (g *runGate) release(shops ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, shop := range shops {
		delete(g.active, shop)
	}
}

// holding reports the shops currently locked, sorted. Diagnostics only.
func (g *runGate) holding() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, 0, len(g.active))
	for shop := range g.active {
		out = append(out, shop)
	}
	sort.Strings(out)
	return out
}
