package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Mopip77/pasteV/internal/validation"
)

// Provider returns the current settings. Implementations never fail: a
// missing or broken file yields defaults.
type Provider interface {
	Load() Settings
}

// Static is a Provider with fixed settings.
type Static Settings

// Load implements Provider.
func (s Static) Load() Settings { return Settings(s) }

// reloadDelay coalesces the burst of events an editor produces on save.
const reloadDelay = 100 * time.Millisecond

// FileProvider serves settings from a JSON file and reloads them when the
// file changes on disk.
type FileProvider struct {
	path      string
	logger    *slog.Logger
	validator *validation.Validator

	mu       sync.RWMutex
	current  Settings
	onChange []func(Settings)

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewFileProvider loads path once. A missing file is not an error.
func NewFileProvider(path string, logger *slog.Logger) *FileProvider {
	p := &FileProvider{
		path:      path,
		logger:    logger,
		validator: validation.New(),
		current:   Defaults(),
	}
	p.Reload()
	return p
}

// Path returns the settings file location.
func (p *FileProvider) Path() string {
	return p.path
}

// Load implements Provider.
func (p *FileProvider) Load() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// OnChange registers fn to run after every successful reload or save.
func (p *FileProvider) OnChange(fn func(Settings)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Reload re-reads the file. Unreadable files and invalid fields fall back to
// defaults and are logged.
func (p *FileProvider) Reload() Settings {
	s := Defaults()

	data, err := os.ReadFile(p.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		p.logger.Debug("settings file not found, using defaults", "path", p.path)
	case err != nil:
		p.logger.Warn("failed to read settings file, using defaults", "path", p.path, "error", err)
	default:
		var bad []string
		s, bad = Decode(data)
		if len(bad) > 0 {
			p.logger.Warn("ignoring malformed settings", "path", p.path, "fields", bad)
		}
		s = p.sanitize(s)
	}

	p.set(s)
	return s
}

// sanitize resets fields that fail validation to their defaults.
func (p *FileProvider) sanitize(s Settings) Settings {
	d := Defaults()
	for field := range p.validator.FieldErrors(s) {
		switch field {
		case "imageInputType":
			s.ImageInputType = d.ImageInputType
		case "semanticSearchThreshold":
			s.SemanticSearchThreshold = d.SemanticSearchThreshold
		case "appWindowToggleShortcut":
			s.AppWindowToggleShortcut = d.AppWindowToggleShortcut
		case "apiHost", "model":
			// An unusable provider disables AI features instead of guessing.
			s.OpenAIConfig = nil
		}
		p.logger.Warn("invalid setting replaced with default", "field", field)
	}
	return s
}

// Save validates s and writes it atomically, then applies it.
func (p *FileProvider) Save(s Settings) error {
	if err := p.validator.Validate(s); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}

	p.set(s)
	p.logger.Info("settings saved", "path", p.path)
	return nil
}

func (p *FileProvider) set(s Settings) {
	p.mu.Lock()
	p.current = s
	hooks := append([]func(Settings){}, p.onChange...)
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}

// Watch reloads the settings whenever the file is written, created, or
// renamed into place. It watches the parent directory so editors that replace
// the file are picked up. Watch returns once the watcher is running; call
// Close to stop it.
func (p *FileProvider) Watch(ctx context.Context) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	p.mu.Lock()
	p.watcher = w
	p.mu.Unlock()

	p.wg.Add(1)
	go p.processEvents(ctx, w)
	return nil
}

func (p *FileProvider) processEvents(ctx context.Context, w *fsnotify.Watcher) {
	defer p.wg.Done()

	target := filepath.Clean(p.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			s := p.Reload()
			p.logger.Info("settings reloaded",
				"ai_tagging", s.AITaggingEnabled(),
				"semantic_search", s.SemanticSearchEnabled(),
				"history_clear_days", s.HistoryClearDays,
			)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			p.logger.Warn("settings watcher error", "error", err)
		}
	}
}

// Close stops the watcher, if running.
func (p *FileProvider) Close() error {
	p.mu.Lock()
	w := p.watcher
	p.watcher = nil
	p.mu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	p.wg.Wait()
	return err
}
