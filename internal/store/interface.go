// Package store defines the persistence interface for the clipboard history.
package store

import (
	"context"
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
)

// Store defines the interface for all persistence operations.
// Lists never carry blobs and cap text at domain.MaxListTextLength.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)

	// Entries
	InsertEntry(ctx context.Context, e *domain.ClipboardEntry) error
	GetEntry(ctx context.Context, hashKey string) (*domain.ClipboardEntry, error)
	ExistsByHashKey(ctx context.Context, hashKey string) (bool, error)
	GetMetas(ctx context.Context, hashKeys []string) (map[string]*domain.ClipboardMeta, error)
	GetBlob(ctx context.Context, hashKey string) ([]byte, error)
	GetFullText(ctx context.Context, hashKey string) (string, error)
	ListEntries(ctx context.Context, f domain.Filter) ([]*domain.ClipboardMeta, error)
	ListRecent(ctx context.Context, n int) ([]*domain.ClipboardMeta, error)
	DeleteLastReadBefore(ctx context.Context, t time.Time) (int64, error)

	// Single-column updates
	UpdateLastReadTime(ctx context.Context, hashKey string, t time.Time) error
	UpdateText(ctx context.Context, hashKey, text string) error
	MergeDetails(ctx context.Context, hashKey string, patch domain.Details) error
	UpdateEmbedding(ctx context.Context, hashKey string, vec []float32) error

	// Tags
	AddTagRelations(ctx context.Context, hashKey string, names []string) error
	TagsForEntry(ctx context.Context, hashKey string) ([]string, error)
	QueryTags(ctx context.Context, substr string, limit int) ([]string, error)
	DeleteOrphanTagRelations(ctx context.Context) (int64, error)

	// Embeddings
	ListEmbeddings(ctx context.Context, typ domain.EntryType) ([]EmbeddedEntry, error)
	GetQueryEmbedding(ctx context.Context, queryText string) ([]float32, error)
	PutQueryEmbedding(ctx context.Context, queryText string, vec []float32) error
}

// EmbeddedEntry pairs an entry key with its stored embedding.
type EmbeddedEntry struct {
	HashKey   string
	Embedding []float32
}

// Stats summarizes the store for health reporting.
type Stats struct {
	Entries       map[domain.EntryType]int64 `json:"entries"`
	Tags          int64                      `json:"tags"`
	Embedded      int64                      `json:"embedded"`
	SchemaVersion int                        `json:"schema_version"`
}
