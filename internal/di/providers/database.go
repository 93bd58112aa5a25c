package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/Mopip77/pasteV/internal/config"
	"github.com/Mopip77/pasteV/internal/logger"
	"github.com/Mopip77/pasteV/internal/metrics"
	"github.com/Mopip77/pasteV/internal/settings"
	"github.com/Mopip77/pasteV/internal/sse"
	"github.com/Mopip77/pasteV/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	m := do.MustInvoke[*metrics.Metrics](i)

	manager := sse.NewManager(log.Component("sse"))
	if err := m.ObserveEventStream(manager); err != nil {
		return nil, fmt.Errorf("register event stream metrics: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the SQLite history store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sqlite.Open(cfg.Storage.DatabasePath, log.Component("store"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Storage.DatabasePath)

	return &StoreHandle{Store: db}, nil
}

// SettingsHandle wraps the settings file provider and its watcher.
type SettingsHandle struct {
	*settings.FileProvider
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SettingsHandle) Shutdown() error {
	h.cancel()
	return h.Close()
}

// ProvideSettings loads app-config.json and starts watching it for edits.
func ProvideSettings(i do.Injector) (*SettingsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	provider := settings.NewFileProvider(cfg.Settings.Path, log.Component("settings"))

	ctx, cancel := context.WithCancel(context.Background())
	if err := provider.Watch(ctx); err != nil {
		// Settings still load; edits just need a restart.
		log.Warn("Settings hot reload disabled", "path", cfg.Settings.Path, "error", err)
	}

	s := provider.Load()
	log.Info("Settings loaded",
		"path", cfg.Settings.Path,
		"ai_tagging", s.AITaggingEnabled(),
		"semantic_search", s.SemanticSearchEnabled(),
		"history_clear_days", s.HistoryClearDays,
	)

	return &SettingsHandle{FileProvider: provider, cancel: cancel}, nil
}
