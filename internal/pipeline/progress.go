package pipeline

import "sync"

// Progress is a point-in-time snapshot of a running shop ingestion.
type Progress struct {
	Phase       RunPhase
	CurrentItem string
	Current     int
	Total       int
	Errors      int
}

// RunPhase represents the current pipeline phase.
type RunPhase string

// RunPhase constants define the phases of a shop run.
const (
	// PhaseCounting represents the input pre-count phase.
	PhaseCounting RunPhase = "counting"
	// PhaseProcessing represents the batched normalization phase.
	PhaseProcessing RunPhase = "processing"
	// PhaseFinalizing represents shard close and usage flush.
	PhaseFinalizing RunPhase = "finalizing"
	// PhaseReporting represents report rendering.
	PhaseReporting RunPhase = "reporting"
	// PhaseComplete represents the completion phase.
	PhaseComplete RunPhase = "complete"
)

// ProgressTracker tracks and reports run progress.
type ProgressTracker struct {
	callback func(*Progress)
	progress Progress
	mu       sync.RWMutex
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(callback func(*Progress)) *ProgressTracker {
	return &ProgressTracker{
		callback: callback,
		progress: Progress{
			Phase: PhaseCounting,
		},
	}
}

// SetPhase updates the current phase and resets the per-phase counters.
func (p *ProgressTracker) SetPhase(phase RunPhase) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Phase = phase
	p.progress.Current = 0
	p.progress.Total = 0
	p.progress.CurrentItem = ""
	p.notify()
}

// SetTotal sets the total items for the current phase.
func (p *ProgressTracker) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Total = total
	p.notify()
}

// Increment increments the current progress.
func (p *ProgressTracker) Increment(currentItem string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Current++
	p.progress.CurrentItem = currentItem
	p.notify()
}

// AddError bumps the error counter.
func (p *ProgressTracker) AddError() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.progress.Errors++
	p.notify()
}

// Get returns current progress.
func (p *ProgressTracker) Get() Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.progress
}

func (p *ProgressTracker) notify() {
	if p.callback != nil {
		// Copy to avoid race.
		progress := p.progress
		go p.callback(&progress)
	}
}
