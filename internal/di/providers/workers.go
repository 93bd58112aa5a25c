package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/ai"
	"github.com/Mopip77/pasteV/internal/clipboard"
	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/enrich"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/ocr"
	"github.com/Mopip77/pasteV/internal/retention"
	"github.com/Mopip77/pasteV/internal/service"
)

// EnrichPipelineHandle wraps the enrichment pipeline with shutdown capability.
type EnrichPipelineHandle struct {
	*enrich.Pipeline
}

// Shutdown implements do.Shutdownable. Chains still running at the deadline
// are cancelled; their entries keep whatever steps already completed.
func (h *EnrichPipelineHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Stop(ctx)
}

// ProvideEnrichPipeline provides the enrichment pipeline and subscribes it
// to newly inserted entries.
func ProvideEnrichPipeline(i do.Injector) (*EnrichPipelineHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	recognizer := do.MustInvoke[*ocr.Tesseract](i)
	client := do.MustInvoke[*ai.Client](i)
	cache := do.MustInvoke[*hotcache.Cache](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	publisher := ssePublisher{manager: sseHandle.Manager}

	pipeline := enrich.New(storeHandle.Store, recognizer, client, client, settingsHandle, enrich.Options{
		Concurrency: cfg.Enrich.Concurrency,
		OCRTimeout:  cfg.Enrich.OCRTimeout,
		AITimeout:   cfg.Enrich.AITimeout,
		Recorder:    m,
		Publisher:   publisher,
	}, log.Component("enrich"))

	cache.OnInserted(func(e *domain.ClipboardEntry) {
		publisher.entryInserted(e)
		pipeline.Submit(e)
	})
	cache.OnTouched(publisher.entryTouched)

	log.Info("Enrichment pipeline started", "concurrency", cfg.Enrich.Concurrency)

	return &EnrichPipelineHandle{Pipeline: pipeline}, nil
}

// PollerHandle wraps the clipboard poller with shutdown capability.
// Poller is nil when no clipboard backend is available.
type PollerHandle struct {
	*clipboard.Poller
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *PollerHandle) Shutdown() error {
	if h.Poller == nil {
		return nil
	}
	h.cancel()
	h.Stop()
	return nil
}

// ProvideClipboardPoller provides the 1s clipboard poller. It depends on the
// enrichment pipeline so no insert happens before the pipeline subscribes.
func ProvideClipboardPoller(i do.Injector) (*PollerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cache := do.MustInvoke[*hotcache.Cache](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	_ = do.MustInvoke[*EnrichPipelineHandle](i)

	if cfg.Poller.Backend == clipboard.BackendNone {
		log.Info("Clipboard polling disabled", "backend", cfg.Poller.Backend)
		return &PollerHandle{}, nil
	}

	pollLog := log.Component("poller")
	reader, err := clipboard.NewCommandReader(cfg.Poller.Backend, cfg.Poller.CommandTimeout, pollLog)
	if err != nil {
		// The API keeps serving history and manual captures.
		log.Warn("Clipboard polling disabled", "error", err)
		return &PollerHandle{}, nil
	}

	poller := clipboard.NewPoller(reader, cache, clipboard.PollerOptions{
		Interval:     cfg.Poller.Interval,
		MaxTextBytes: cfg.Poller.MaxTextBytes,
		Recorder:     m,
	}, pollLog)

	ctx, cancel := context.WithCancel(context.Background())
	poller.Start(ctx)

	log.Info("Clipboard poller started", "interval", cfg.Poller.Interval, "backend", cfg.Poller.Backend)

	return &PollerHandle{Poller: poller, cancel: cancel}, nil
}

// RetentionJobHandle wraps the daily retention sweep.
type RetentionJobHandle struct {
	*retention.Job
}

// Shutdown implements do.Shutdownable.
func (h *RetentionJobHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRetentionJob provides the retention job: one sweep at startup, then
// daily at 01:00 local time.
func ProvideRetentionJob(i do.Injector) (*RetentionJobHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	settingsHandle := do.MustInvoke[*SettingsHandle](i)
	history := do.MustInvoke[*service.HistoryService](i)
	m := do.MustInvoke[*metrics.Metrics](i)

	job := retention.New(history, settingsHandle, m, log.Component("retention"))
	job.Start()

	log.Info("Retention job started", "next_run", retention.NextRun(time.Now()))

	return &RetentionJobHandle{Job: job}, nil
}
