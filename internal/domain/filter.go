package domain

import "time"

// Default and maximum page sizes for filtered queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Filter describes a filtered, cursor-paginated history query.
type Filter struct {
	Keyword string     `json:"keyword,omitempty"`
	Regex   bool       `json:"regex,omitempty"`
	Type    EntryType  `json:"type,omitempty" validate:"omitempty,oneof=text image file"`
	Tags    []string   `json:"tags,omitempty" validate:"max=20,dive,required"`
	Cursor  *time.Time `json:"cursor,omitempty"` // lastReadTime of the previous page's last item
	Size    int        `json:"size" validate:"gte=0,lte=200"`
}

// PageSize returns Size clamped to the allowed range.
func (f Filter) PageSize() int {
	switch {
	case f.Size <= 0:
		return DefaultPageSize
	case f.Size > MaxPageSize:
		return MaxPageSize
	default:
		return f.Size
	}
}
