// Package hotcache keeps the most recently seen clipboard entries in memory
// so the poller can dedup repeated observations without a database round trip.
package hotcache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/store"
)

// DefaultCapacity is the number of entries mirrored in memory.
const DefaultCapacity = 100

// Store is the subset of persistence the cache writes through to.
type Store interface {
	InsertEntry(ctx context.Context, e *domain.ClipboardEntry) error
	ExistsByHashKey(ctx context.Context, hashKey string) (bool, error)
	UpdateLastReadTime(ctx context.Context, hashKey string, t time.Time) error
	ListRecent(ctx context.Context, n int) ([]*domain.ClipboardMeta, error)
}

// Outcome reports what Add did with a candidate.
type Outcome int

const (
	// OutcomeUnchanged means the candidate repeats the last added key; no I/O happened.
	OutcomeUnchanged Outcome = iota
	// OutcomeTouched means the entry already existed and its lastReadTime was bumped.
	OutcomeTouched
	// OutcomeInserted means a new entry was persisted.
	OutcomeInserted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeTouched:
		return "touched"
	case OutcomeInserted:
		return "inserted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// InsertedFunc is called after a novel entry is persisted. The entry still
// carries its blob.
type InsertedFunc func(e *domain.ClipboardEntry)

// TouchedFunc is called after an existing entry's lastReadTime is bumped.
type TouchedFunc func(m *domain.ClipboardMeta)

// Cache is an insertion-ordered map of hashKey to entry meta with the newest
// entry at the tail. It is safe for concurrent use.
type Cache struct {
	store    Store
	logger   *slog.Logger
	capacity int

	mu      sync.Mutex
	order   *list.List // of *domain.ClipboardMeta, oldest at front
	items   map[string]*list.Element
	lastKey string

	onInserted InsertedFunc
	onTouched  TouchedFunc
}

// New creates an empty cache. Call Warm to load recent history.
func New(st Store, capacity int, logger *slog.Logger) *Cache {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Cache{
		store:    st,
		logger:   logger,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// OnInserted registers the hook run for every novel entry.
func (c *Cache) OnInserted(fn InsertedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInserted = fn
}

// OnTouched registers the hook run for every re-observed entry.
func (c *Cache) OnTouched(fn TouchedFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTouched = fn
}

// Warm replaces the cache contents with the most recent entries from the
// store. The newest entry becomes the last added key, so the clipboard's
// current content is not re-touched on the first tick after a restart.
func (c *Cache) Warm(ctx context.Context) error {
	recent, err := c.store.ListRecent(ctx, c.capacity)
	if err != nil {
		return fmt.Errorf("load recent entries: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	clear(c.items)
	c.lastKey = ""

	// ListRecent is newest first; push oldest first so the newest ends at the tail.
	for i := len(recent) - 1; i >= 0; i-- {
		m := recent[i]
		c.items[m.HashKey] = c.order.PushBack(m)
		c.lastKey = m.HashKey
	}

	c.logger.Debug("hot cache warmed", "entries", len(recent), "capacity", c.capacity)
	return nil
}

// Add records an observation of candidate.
//
// A candidate equal to the last added key is ignored. A known key, whether
// cached or only in the store, is moved to the tail and its lastReadTime
// persisted. Anything else is inserted, the head is evicted past capacity,
// and the inserted hook fires.
func (c *Cache) Add(ctx context.Context, candidate *domain.ClipboardEntry) (Outcome, error) {
	if candidate == nil || candidate.HashKey == "" {
		return OutcomeUnchanged, errors.New("candidate has no hash key")
	}

	c.mu.Lock()
	outcome, meta, err := c.add(ctx, candidate)
	onInserted, onTouched := c.onInserted, c.onTouched
	c.mu.Unlock()

	if err != nil {
		return outcome, err
	}

	switch outcome {
	case OutcomeInserted:
		if onInserted != nil {
			onInserted(candidate)
		}
	case OutcomeTouched:
		if onTouched != nil {
			onTouched(meta)
		}
	}
	return outcome, nil
}

// add runs with c.mu held.
func (c *Cache) add(ctx context.Context, candidate *domain.ClipboardEntry) (Outcome, *domain.ClipboardMeta, error) {
	key := candidate.HashKey
	if key == c.lastKey {
		return OutcomeUnchanged, nil, nil
	}

	known := false
	if _, ok := c.items[key]; ok {
		known = true
	} else {
		exists, err := c.store.ExistsByHashKey(ctx, key)
		if err != nil {
			return OutcomeUnchanged, nil, fmt.Errorf("check existing entry: %w", err)
		}
		known = exists
	}

	if known {
		meta, err := c.touch(ctx, candidate)
		switch {
		case err == nil:
			return OutcomeTouched, meta, nil
		case errors.Is(err, store.ErrNotFound):
			// Swept by retention since it was cached; store it again.
			c.remove(key)
		default:
			return OutcomeUnchanged, nil, err
		}
	}

	err := c.store.InsertEntry(ctx, candidate)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with another writer; treat as a re-observation.
		meta, err := c.touch(ctx, candidate)
		if err != nil {
			return OutcomeUnchanged, nil, err
		}
		return OutcomeTouched, meta, nil
	}
	if err != nil {
		return OutcomeUnchanged, nil, fmt.Errorf("insert entry: %w", err)
	}

	meta := candidate.Meta()
	c.pushBack(meta)
	c.evict()
	return OutcomeInserted, meta, nil
}

// touch persists the new lastReadTime and moves the key to the tail. The
// returned meta is a copy; the cached one keeps changing on later touches.
func (c *Cache) touch(ctx context.Context, candidate *domain.ClipboardEntry) (*domain.ClipboardMeta, error) {
	key := candidate.HashKey
	if err := c.store.UpdateLastReadTime(ctx, key, candidate.LastReadTime); err != nil {
		return nil, fmt.Errorf("update last read time: %w", err)
	}

	var meta *domain.ClipboardMeta
	if el, ok := c.items[key]; ok {
		meta = el.Value.(*domain.ClipboardMeta)
		c.order.Remove(el)
		delete(c.items, key)
	} else {
		meta = candidate.Meta()
	}
	meta.LastReadTime = candidate.LastReadTime

	c.pushBack(meta)
	c.evict()
	cp := *meta
	return &cp, nil
}

func (c *Cache) pushBack(meta *domain.ClipboardMeta) {
	c.items[meta.HashKey] = c.order.PushBack(meta)
	c.lastKey = meta.HashKey
}

func (c *Cache) remove(key string) {
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
	if c.lastKey == key {
		c.lastKey = ""
	}
}

func (c *Cache) evict() {
	for c.order.Len() > c.capacity {
		head := c.order.Front()
		meta := c.order.Remove(head).(*domain.ClipboardMeta)
		delete(c.items, meta.HashKey)
	}
}

// Prune drops cached entries last read before t. Retention calls it after
// deleting the same rows from the store.
func (c *Cache) Prune(t time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		meta := el.Value.(*domain.ClipboardMeta)
		if meta.LastReadTime.Before(t) {
			c.remove(meta.HashKey)
			removed++
		}
		el = next
	}
	return removed
}

// Contains reports whether key is cached.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns cached keys, newest first.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for el := c.order.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*domain.ClipboardMeta).HashKey)
	}
	return keys
}

// Last returns the most recently added key, or "" when empty.
func (c *Cache) Last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKey
}
