package service

import (
	"log/slog"

	"github.com/Mopip77/pasteV/internal/query"
	"github.com/Mopip77/pasteV/internal/settings"
)

// SettingsStore loads and persists the settings file.
type SettingsStore interface {
	Load() settings.Settings
	Save(s settings.Settings) error
}

// SettingsService manages the user-editable settings.
type SettingsService struct {
	store  SettingsStore
	engine *query.Engine
	logger *slog.Logger
}

// NewSettingsService creates a new settings service. engine may be nil.
func NewSettingsService(store SettingsStore, engine *query.Engine, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Get returns the current settings.
func (s *SettingsService) Get() settings.Settings {
	return s.store.Load()
}

// Update validates and saves a full settings document. Memoized query
// embeddings are dropped when the provider host changes.
func (s *SettingsService) Update(next settings.Settings) (settings.Settings, error) {
	prev := s.store.Load()
	if err := s.store.Save(next); err != nil {
		return prev, err
	}

	if s.engine != nil && providerChanged(prev.OpenAIConfig, next.OpenAIConfig) {
		s.engine.FlushMemo()
	}

	s.logger.Info("settings updated",
		"ai_tag", next.AITaggingEnabled(),
		"semantic_search", next.SemanticSearchEnabled(),
		"history_clear_days", next.HistoryClearDays,
	)
	return s.store.Load(), nil
}

func providerChanged(a, b *settings.OpenAIConfig) bool {
	if a == nil || b == nil {
		return a != b
	}
	return a.APIHost != b.APIHost
}
