// Package service exposes the clipboard history to the local API and the
// background jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Mopip77/pasteV/internal/clipboard"
	"github.com/Mopip77/pasteV/internal/domain"
	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/hotcache"
	"github.com/Mopip77/pasteV/internal/query"
	"github.com/Mopip77/pasteV/internal/store"
)

// DefaultTagLimit caps tag suggestions.
const DefaultTagLimit = 20

// Capture is a manually pushed clipboard payload.
type Capture struct {
	Text      string
	HTML      string
	FileURIs  []string
	Image     []byte
	ImageMime string
}

// AddResult reports what a capture did to the history.
type AddResult struct {
	Outcome hotcache.Outcome
	Entry   *domain.ClipboardMeta
}

// SweepResult reports one retention pass.
type SweepResult struct {
	Horizon     time.Time `json:"horizon"`
	Deleted     int64     `json:"deleted"`
	OrphanTags  int64     `json:"orphan_tags"`
	CachePruned int       `json:"cache_pruned"`
}

// HistoryService is the inbound facade over the history store, hot cache,
// and query engine.
type HistoryService struct {
	store        store.Store
	cache        *hotcache.Cache
	engine       *query.Engine
	maxTextBytes int
	now          func() time.Time
	logger       *slog.Logger

	mu      sync.RWMutex
	onSwept []func(*SweepResult)
}

// NewHistoryService creates a new history service.
func NewHistoryService(
	st store.Store,
	cache *hotcache.Cache,
	engine *query.Engine,
	maxTextBytes int,
	logger *slog.Logger,
) *HistoryService {
	return &HistoryService{
		store:        st,
		cache:        cache,
		engine:       engine,
		maxTextBytes: maxTextBytes,
		now:          time.Now,
		logger:       logger,
	}
}

// OnSwept registers fn to run after every successful DeleteOlderThan.
func (s *HistoryService) OnSwept(fn func(*SweepResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwept = append(s.onSwept, fn)
}

// Query returns one filtered page of history.
func (s *HistoryService) Query(ctx context.Context, f domain.Filter) ([]*domain.ClipboardMeta, error) {
	metas, err := s.engine.Query(ctx, f)
	if err != nil {
		return nil, storageOr(err, "query history")
	}
	return metas, nil
}

// SemanticQuery ranks history by similarity to text.
func (s *HistoryService) SemanticQuery(ctx context.Context, text string, threshold float64, size int) ([]*domain.ClipboardMeta, error) {
	metas, err := s.engine.SemanticQuery(ctx, text, threshold, size)
	if err != nil {
		if domainerrors.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domainerrors.ProviderUnavailable(err, "embedding")
	}
	return metas, nil
}

// Add records a manual capture through the same dedup path as the poller.
func (s *HistoryService) Add(ctx context.Context, c Capture) (*AddResult, error) {
	candidate, err := clipboard.Classify(clipboard.Snapshot{
		Image:     c.Image,
		ImageMime: c.ImageMime,
		FileURIs:  c.FileURIs,
		Text:      c.Text,
		HTML:      c.HTML,
	}, s.now().UTC(), s.maxTextBytes)
	switch {
	case errors.Is(err, clipboard.ErrEmpty):
		return nil, domainerrors.Validation("capture is empty")
	case errors.Is(err, clipboard.ErrTooLarge):
		return nil, domainerrors.Validationf("text exceeds %d bytes", s.maxTextBytes)
	case err != nil:
		return nil, err
	}

	outcome, err := s.cache.Add(ctx, candidate)
	if err != nil {
		return nil, storageOr(err, "add entry")
	}

	metas, err := s.store.GetMetas(ctx, []string{candidate.HashKey})
	if err != nil {
		return nil, storageOr(err, "load entry")
	}
	meta, ok := metas[candidate.HashKey]
	if !ok {
		meta = candidate.Meta()
	}

	s.logger.Debug("manual capture", "hash_key", candidate.HashKey, "outcome", outcome.String())
	return &AddResult{Outcome: outcome, Entry: meta}, nil
}

// GetBlob returns the image bytes of an entry.
func (s *HistoryService) GetBlob(ctx context.Context, hashKey string) ([]byte, error) {
	blob, err := s.store.GetBlob(ctx, hashKey)
	if err != nil {
		return nil, notFoundOr(err, hashKey)
	}
	if len(blob) == 0 {
		return nil, domainerrors.NotFoundf("entry %s has no blob", hashKey)
	}
	return blob, nil
}

// GetFullText returns the untruncated text of an entry.
func (s *HistoryService) GetFullText(ctx context.Context, hashKey string) (string, error) {
	text, err := s.store.GetFullText(ctx, hashKey)
	if err != nil {
		return "", notFoundOr(err, hashKey)
	}
	return text, nil
}

// QueryTags returns distinct tag names containing q.
func (s *HistoryService) QueryTags(ctx context.Context, q string, limit int) ([]string, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultTagLimit
	}
	names, err := s.store.QueryTags(ctx, strings.TrimSpace(q), limit)
	if err != nil {
		return nil, storageOr(err, "query tags")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// DeleteOlderThan removes entries last read before t, then sweeps orphaned
// tag relations and drops the entries from the hot cache.
func (s *HistoryService) DeleteOlderThan(ctx context.Context, t time.Time) (*SweepResult, error) {
	if t.IsZero() {
		return nil, domainerrors.Validation("horizon is required")
	}

	deleted, err := s.store.DeleteLastReadBefore(ctx, t)
	if err != nil {
		return nil, storageOr(err, "delete old entries")
	}
	res := &SweepResult{Horizon: t, Deleted: deleted}

	orphans, err := s.store.DeleteOrphanTagRelations(ctx)
	if err != nil {
		s.logger.Warn("orphan tag cleanup failed", "error", err)
	} else {
		res.OrphanTags = orphans
	}

	if s.cache != nil {
		res.CachePruned = s.cache.Prune(t)
	}

	s.logger.Info("history swept",
		"horizon", t.Format(time.RFC3339),
		"deleted", res.Deleted,
		"orphan_tags", res.OrphanTags,
	)

	s.mu.RLock()
	hooks := s.onSwept
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(res)
	}
	return res, nil
}

// Stats summarizes the store for health reporting.
func (s *HistoryService) Stats(ctx context.Context) (*store.Stats, error) {
	return s.store.Stats(ctx)
}

// notFoundOr maps store.ErrNotFound to a domain not-found error.
func notFoundOr(err error, hashKey string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFoundf("entry %s not found", hashKey)
	}
	return storageOr(err, "read entry")
}

// storageOr passes domain errors through and wraps everything else as a
// storage failure.
func storageOr(err error, op string) error {
	if domainerrors.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domainerrors.StorageUnavailable(fmt.Errorf("%s: %w", op, err), op)
}
