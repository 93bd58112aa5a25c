// Package query serves the clipboard history: filtered, cursor-paginated
// listing and embedding-based semantic search.
package query

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/normalize"
	"github.com/Mopip77/pasteV/internal/settings"
	"github.com/Mopip77/pasteV/internal/store"
	"github.com/Mopip77/pasteV/internal/validation"
)

// Query modes, as reported to the Recorder.
const (
	ModeFiltered = "filtered"
	ModeSemantic = "semantic"
)

// DefaultEmbeddingTTL is how long query embeddings stay in memory.
const DefaultEmbeddingTTL = time.Hour

// Store is the read side of persistence plus the query embedding memo.
type Store interface {
	ListEntries(ctx context.Context, f domain.Filter) ([]*domain.ClipboardMeta, error)
	GetMetas(ctx context.Context, hashKeys []string) (map[string]*domain.ClipboardMeta, error)
	ListEmbeddings(ctx context.Context, typ domain.EntryType) ([]store.EmbeddedEntry, error)
	GetQueryEmbedding(ctx context.Context, queryText string) ([]float32, error)
	PutQueryEmbedding(ctx context.Context, queryText string, vec []float32) error
}

// Embedder computes text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Recorder observes served queries.
type Recorder interface {
	RecordQuery(mode string, d time.Duration, results int)
}

type nopRecorder struct{}

func (nopRecorder) RecordQuery(string, time.Duration, int) {}

// Options configures an Engine.
type Options struct {
	EmbeddingTTL time.Duration
	Recorder     Recorder
}

// Engine answers history queries. All reads go to the store; the hot cache
// is never consulted.
type Engine struct {
	store     Store
	embed     Embedder
	settings  settings.Provider
	validator *validation.Validator
	memo      *cache.Cache
	recorder  Recorder
	logger    *slog.Logger
}

// NewEngine creates a query engine. embed may be nil, in which case semantic
// queries return no results.
func NewEngine(st Store, embed Embedder, sp settings.Provider, v *validation.Validator, opts Options, logger *slog.Logger) *Engine {
	if opts.EmbeddingTTL <= 0 {
		opts.EmbeddingTTL = DefaultEmbeddingTTL
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if v == nil {
		v = validation.New()
	}
	return &Engine{
		store:     st,
		embed:     embed,
		settings:  sp,
		validator: v,
		memo:      cache.New(opts.EmbeddingTTL, opts.EmbeddingTTL*2),
		recorder:  opts.Recorder,
		logger:    logger,
	}
}

// Query returns one page of entries matching f, newest first. An invalid
// regular expression yields an empty page rather than an error.
func (e *Engine) Query(ctx context.Context, f domain.Filter) ([]*domain.ClipboardMeta, error) {
	start := time.Now()
	if err := e.validator.Validate(f); err != nil {
		return nil, err
	}
	f.Tags = canonicalTags(f.Tags)

	if f.Regex && f.Keyword != "" {
		if _, err := regexp.Compile("(?i)" + f.Keyword); err != nil {
			e.logger.Debug("invalid search pattern", "pattern", f.Keyword, "error", err)
			return []*domain.ClipboardMeta{}, nil
		}
	}

	metas, err := e.store.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	if metas == nil {
		metas = []*domain.ClipboardMeta{}
	}
	e.recorder.RecordQuery(ModeFiltered, time.Since(start), len(metas))
	return metas, nil
}

// canonicalTags maps filter tags to the form the tagging step stores,
// dropping the ones that normalize to nothing.
func canonicalTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalize.Tag(t); t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// SemanticQuery ranks embedded entries by cosine similarity to text and
// returns up to size of those scoring at least threshold, best first.
// A non-positive threshold uses the configured default.
func (e *Engine) SemanticQuery(ctx context.Context, text string, threshold float64, size int) ([]*domain.ClipboardMeta, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	s := e.settings.Load()
	if text == "" || e.embed == nil || !s.SemanticSearchEnabled() {
		return []*domain.ClipboardMeta{}, nil
	}

	if threshold <= 0 {
		threshold = s.SemanticSearchThreshold
	}
	size = domain.Filter{Size: size}.PageSize()

	queryVec, err := e.queryEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	stored, err := e.store.ListEmbeddings(ctx, "")
	if err != nil {
		return nil, err
	}

	type scored struct {
		key   string
		score float64
	}
	var hits []scored
	for _, se := range stored {
		if score := Cosine(queryVec, se.Embedding); score >= threshold {
			hits = append(hits, scored{key: se.HashKey, score: score})
		}
	}
	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > size {
		hits = hits[:size]
	}

	keys := make([]string, len(hits))
	for i, h := range hits {
		keys[i] = h.key
	}
	metas, err := e.store.GetMetas(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ClipboardMeta, 0, len(hits))
	for _, h := range hits {
		m, ok := metas[h.key]
		if !ok {
			// Deleted between the scan and the load.
			continue
		}
		score := h.score
		m.Score = &score
		out = append(out, m)
	}

	e.recorder.RecordQuery(ModeSemantic, time.Since(start), len(out))
	return out, nil
}

// queryEmbedding resolves the embedding of a search phrase through the
// in-memory memo, then the store, then the provider.
func (e *Engine) queryEmbedding(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.memo.Get(text); ok {
		return v.([]float32), nil
	}

	vec, err := e.store.GetQueryEmbedding(ctx, text)
	switch {
	case err == nil:
		e.memo.Set(text, vec, cache.DefaultExpiration)
		return vec, nil
	case !errors.Is(err, store.ErrNotFound):
		e.logger.Warn("query embedding lookup failed", "error", err)
	}

	vec, err = e.embed.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.memo.Set(text, vec, cache.DefaultExpiration)
	if err := e.store.PutQueryEmbedding(ctx, text, vec); err != nil {
		e.logger.Warn("failed to persist query embedding", "error", err)
	}
	return vec, nil
}

// FlushMemo drops every memoized query embedding, e.g. after the embedding
// provider changes.
func (e *Engine) FlushMemo() {
	e.memo.Flush()
}
