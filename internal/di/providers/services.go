package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/ai"
	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/ocr"
	"github.com/Mopip77/pasteV/internal/query"
	"github.com/Mopip77/pasteV/internal/ratelimit"
	"github.com/Mopip77/pasteV/internal/service"
	"github.com/Mopip77/pasteV/internal/settings"
	"github.com/Mopip77/pasteV/internal/validation"
)

// ProvideAIClient provides the OpenAI-compatible chat and embedding client.
// The provider config is re-read from settings on every call.
func ProvideAIClient(i do.Injector) (*ai.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)

	return ai.NewClient(aiConfigFrom(settingsHandle), ai.Options{
		Timeout:  cfg.Enrich.AITimeout,
		Limiter:  ratelimit.New(cfg.Enrich.AIRateLimit, cfg.Enrich.AIBurst),
		Recorder: m,
	}, log.Component("ai")), nil
}

// aiConfigFrom maps the user settings onto a client config.
func aiConfigFrom(sp settings.Provider) ai.ConfigFunc {
	return func() ai.Config {
		c := sp.Load().OpenAIConfig
		if c == nil {
			return ai.Config{}
		}
		return ai.Config{
			APIHost: c.APIHost,
			APIKey:  c.APIKey,
			Model:   c.Model,
		}
	}
}

// ProvideOCR provides the tesseract recognizer. A missing binary yields a
// recognizer that reports ocr.ErrUnavailable.
func ProvideOCR(i do.Injector) (*ocr.Tesseract, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return ocr.NewTesseract(ocr.Config{
		Command:   cfg.Enrich.OCRCommand,
		Languages: cfg.Enrich.OCRLanguages,
		Timeout:   cfg.Enrich.OCRTimeout,
	}, log.Component("ocr")), nil
}

// ProvideQueryEngine provides the filtered and semantic query engine.
func ProvideQueryEngine(i do.Injector) (*query.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	client := do.MustInvoke[*ai.Client](i)
	v := do.MustInvoke[*validation.Validator](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	return query.NewEngine(storeHandle.Store, client, settingsHandle, v, query.Options{
		EmbeddingTTL: cfg.Cache.QueryEmbeddingTTL,
		Recorder:     m,
	}, log.Component("query")), nil
}

// ProvideHotCache provides the in-memory dedup cache, warmed from the store.
func ProvideHotCache(i do.Injector) (*hotcache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	cache := hotcache.New(storeHandle.Store, cfg.Cache.HotSize, log.Component("hotcache"))

	ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
	defer cancel()
	if err := cache.Warm(ctx); err != nil {
		// A cold cache only costs extra store lookups.
		log.Warn("Hot cache warmup failed", "error", err)
	} else {
		log.Info("Hot cache warmed", "entries", cache.Len())
	}

	return cache, nil
}

// ProvideHistoryService provides the history facade.
func ProvideHistoryService(i do.Injector) (*service.HistoryService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cache := do.MustInvoke[*hotcache.Cache](i)
	engine := do.MustInvoke[*query.Engine](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	history := service.NewHistoryService(storeHandle.Store, cache, engine, cfg.Poller.MaxTextBytes, log.Component("history"))
	history.OnSwept(ssePublisher{manager: sseHandle.Manager}.historySwept)

	return history, nil
}

// ProvideSettingsService provides the settings editor.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	engine := do.MustInvoke[*query.Engine](i)

	return service.NewSettingsService(settingsHandle.FileProvider, engine, log.Component("settings")), nil
}
