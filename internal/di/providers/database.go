package providers

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/store"
)

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the run-history store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Data.DatabasePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Data.DatabasePath)

	return &StoreHandle{Store: db}, nil
}
