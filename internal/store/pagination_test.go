package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mopip77/pasteV/internal/domain"
)

func TestNewPage(t *testing.T) {
	now := time.Now().UTC()
	items := []*domain.ClipboardMeta{
		{HashKey: "a", LastReadTime: now},
		{HashKey: "b", LastReadTime: now.Add(-time.Minute)},
	}

	tests := []struct {
		name    string
		items   []*domain.ClipboardMeta
		size    int
		hasMore bool
	}{
		{name: "full page has a cursor", items: items, size: 2, hasMore: true},
		{name: "short page is the last", items: items, size: 3, hasMore: false},
		{name: "empty page", items: nil, size: 2, hasMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage(tt.items, tt.size)
			require.NotNil(t, p.Items)
			assert.Equal(t, tt.hasMore, p.HasMore)
			if tt.hasMore {
				require.NotNil(t, p.NextCursor)
				assert.Equal(t, items[1].LastReadTime, *p.NextCursor)
			} else {
				assert.Nil(t, p.NextCursor)
			}
		})
	}
}
