package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/watch"
)

// WatcherHandle wraps the input watcher with shutdown capability. A disabled
// watch mode leaves the embedded watcher nil.
type WatcherHandle struct {
	*watch.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideWatcher provides the input directory watcher.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	processor := do.MustInvoke[*pipeline.Processor](i)

	if !cfg.Watch.Enabled {
		log.Info("Input watch mode disabled")
		return &WatcherHandle{}, nil
	}

	w, err := watch.New(cfg.Pipeline.InputDir, cfg.Watch.Debounce, log.Logger)
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("Input watcher error", "error", err)
		}
	}()

	// Run each shop as its input settles. Triggers arrive one at a time, so
	// watch-initiated runs never overlap.
	go func() {
		for {
			select {
			case shop, ok := <-w.Triggers():
				if !ok {
					return
				}
				result, err := processor.ProcessShop(ctx, shop, pipeline.Options{})
				if err != nil {
					log.Error("Watch-triggered run failed", "shop", shop, "error", err)
					continue
				}
				log.Info("Watch-triggered run finished",
					"shop", shop,
					"run_id", result.RunID,
					"processed", result.Stats.TotalProcessed,
					"unmapped", result.Stats.TotalUnmapped,
				)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Input watcher started", "root", cfg.Pipeline.InputDir, "debounce", cfg.Watch.Debounce)

	return &WatcherHandle{Watcher: w, cancel: cancel}, nil
}
