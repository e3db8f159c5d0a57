// Package di provides dependency injection configuration for the Shelfwise daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/config"
	"github.com/shelfwise/shelfwise-pipeline/internal/di/providers"
	"github.com/shelfwise/shelfwise-pipeline/internal/logger"
	"github.com/shelfwise/shelfwise-pipeline/internal/mapping"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
	"github.com/shelfwise/shelfwise-pipeline/internal/pipeline"
	"github.com/shelfwise/shelfwise-pipeline/internal/rules"
	"github.com/shelfwise/shelfwise-pipeline/internal/taxonomy"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Mapping layer
	do.Provide(injector, providers.ProvideRuleStore)
	do.Provide(injector, providers.ProvideTaxonomyIndex)
	do.Provide(injector, providers.ProvideEngine)
	do.Provide(injector, providers.ProvideRegistry)

	// Pipeline layer
	do.Provide(injector, providers.ProvideProcessor)

	// Workers
	do.Provide(injector, providers.ProvideWatcher)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Mapping layer
	_ = do.MustInvoke[*rules.Store](injector)
	_ = do.MustInvoke[*taxonomy.Index](injector)
	_ = do.MustInvoke[*mapping.Engine](injector)
	_ = do.MustInvoke[*normalizer.Registry](injector)

	// Pipeline layer
	_ = do.MustInvoke[*pipeline.Processor](injector)

	// Workers
	_ = do.MustInvoke[*providers.WatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
