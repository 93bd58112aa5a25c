// Package di provides dependency injection configuration for the pasteV daemon.
package di

import (
	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/ai"
	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/di/providers"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/ocr"
	"github.com/Mopip77/pasteV/internal/query"
	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)
	do.Provide(injector, providers.ProvideValidator)

	// Storage and settings
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSettings)

	// External tools
	do.Provide(injector, providers.ProvideAIClient)
	do.Provide(injector, providers.ProvideOCR)

	// Business services
	do.Provide(injector, providers.ProvideHotCache)
	do.Provide(injector, providers.ProvideQueryEngine)
	do.Provide(injector, providers.ProvideHistoryService)
	do.Provide(injector, providers.ProvideSettingsService)

	// Workers
	do.Provide(injector, providers.ProvideEnrichPipeline)
	do.Provide(injector, providers.ProvideClipboardPoller)
	do.Provide(injector, providers.ProvideRetentionJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	// Invoke core services to trigger initialization
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.SettingsHandle](injector)
	_ = do.MustInvoke[*ai.Client](injector)
	_ = do.MustInvoke[*ocr.Tesseract](injector)

	// Business services
	_ = do.MustInvoke[*hotcache.Cache](injector)
	_ = do.MustInvoke[*query.Engine](injector)
	_ = do.MustInvoke[*service.HistoryService](injector)
	_ = do.MustInvoke[*service.SettingsService](injector)

	// Workers. The pipeline subscribes to the hot cache before the poller
	// or the API can insert anything.
	_ = do.MustInvoke[*providers.EnrichPipelineHandle](injector)
	_ = do.MustInvoke[*providers.PollerHandle](injector)
	_ = do.MustInvoke[*providers.RetentionJobHandle](injector)

	// Server
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	return nil
}
