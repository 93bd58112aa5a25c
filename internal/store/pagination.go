package store

import (
	"time"

	"github.com/Mopip77/pasteV/internal/domain"
)

// Page is one page of a cursor-paginated listing.
type Page struct {
	Items      []*domain.ClipboardMeta `json:"items"`
	NextCursor *time.Time              `json:"next_cursor,omitempty"` // Nil when there are no more pages
	HasMore    bool                    `json:"has_more"`
}

// NewPage builds a page from a result set fetched with the given size.
// A full page may have a successor; the cursor is the last item's
// lastReadTime, to be passed back as Filter.Cursor (strictly-before).
func NewPage(items []*domain.ClipboardMeta, size int) Page {
	if items == nil {
		items = []*domain.ClipboardMeta{}
	}
	p := Page{Items: items}
	if size > 0 && len(items) == size {
		last := items[len(items)-1].LastReadTime
		p.NextCursor = &last
		p.HasMore = true
	}
	return p
}
