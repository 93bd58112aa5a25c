package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// EntryType classifies a captured clipboard payload.
type EntryType string

// Entry types, in classification priority order: an image always wins over
// a file reference, which wins over plain text.
const (
	EntryTypeImage EntryType = "image"
	EntryTypeFile  EntryType = "file"
	EntryTypeText  EntryType = "text"
)

// MaxListTextLength is the number of characters kept in list projections.
const MaxListTextLength = 10_000

// ParseEntryType validates a raw type string.
func ParseEntryType(s string) (EntryType, error) {
	switch EntryType(s) {
	case EntryTypeText, EntryTypeImage, EntryTypeFile:
		return EntryType(s), nil
	default:
		return "", fmt.Errorf("unknown entry type %q", s)
	}
}

// ClipboardEntry is one deduplicated clipboard observation.
// HashKey is unique across all entries and is the dedup identity.
type ClipboardEntry struct {
	ID           int64     `json:"id"`
	Type         EntryType `json:"type"`
	Text         string    `json:"text"`
	Blob         []byte    `json:"-"`
	HashKey      string    `json:"hash_key"`
	CreateTime   time.Time `json:"create_time"`
	LastReadTime time.Time `json:"last_read_time"`
	Details      Details   `json:"details"`
	Embedding    []float32 `json:"-"`
}

// Meta projects the entry into its list form: blob dropped, text truncated.
func (e *ClipboardEntry) Meta() *ClipboardMeta {
	text, truncated := TruncateText(e.Text, MaxListTextLength)
	return &ClipboardMeta{
		ID:            e.ID,
		Type:          e.Type,
		Text:          text,
		TextTruncated: truncated,
		HashKey:       e.HashKey,
		CreateTime:    e.CreateTime,
		LastReadTime:  e.LastReadTime,
		Details:       e.Details,
	}
}

// ClipboardMeta is the list/query projection of an entry. It never carries
// the blob, and Text holds at most MaxListTextLength characters.
type ClipboardMeta struct {
	ID            int64     `json:"id"`
	Type          EntryType `json:"type"`
	Text          string    `json:"text"`
	TextTruncated bool      `json:"text_truncated"`
	HashKey       string    `json:"hash_key"`
	CreateTime    time.Time `json:"create_time"`
	LastReadTime  time.Time `json:"last_read_time"`
	Details       Details   `json:"details"`
	Score         *float64  `json:"score,omitempty"` // Set by semantic search only
}

// TruncateText cuts s to at most limit characters (runes).
func TruncateText(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i], true
		}
		n++
	}
	return s, false
}
