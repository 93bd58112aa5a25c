package clipboard

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/fingerprint"
)

var now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func TestClassify_Priority(t *testing.T) {
	tests := []struct {
		name     string
		snap     Snapshot
		wantType domain.EntryType
		wantText string
	}{
		{
			name:     "image wins over everything",
			snap:     Snapshot{Image: []byte{1, 2, 3}, FileURIs: []string{"file:///tmp/a"}, Text: "a"},
			wantType: domain.EntryTypeImage,
		},
		{
			name:     "file wins over text",
			snap:     Snapshot{FileURIs: []string{"file:///tmp/a", "file:///tmp/b"}, Text: "a"},
			wantType: domain.EntryTypeFile,
			wantText: "file:///tmp/a\nfile:///tmp/b",
		},
		{
			name:     "plain text",
			snap:     Snapshot{Text: "hello", HTML: "<p>ignored</p>"},
			wantType: domain.EntryTypeText,
			wantText: "hello",
		},
		{
			name:     "html only becomes markdown",
			snap:     Snapshot{HTML: "<p>Hello <strong>world</strong></p>"},
			wantType: domain.EntryTypeText,
			wantText: "Hello **world**",
		},
		{
			name:     "NUL bytes dropped",
			snap:     Snapshot{Text: "abc\x00"},
			wantType: domain.EntryTypeText,
			wantText: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Classify(tt.snap, now, 1024)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, tt.wantText, e.Text)
			assert.Equal(t, now, e.CreateTime)
			assert.Equal(t, now, e.LastReadTime)
			assert.Equal(t, fingerprint.Entry(e), e.HashKey)
			assert.True(t, e.Details.IsEmpty())
		})
	}
}

func TestClassify_Rejects(t *testing.T) {
	_, err := Classify(Snapshot{}, now, 1024)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Classify(Snapshot{HTML: "<p></p>"}, now, 1024)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Classify(Snapshot{Text: strings.Repeat("x", 1025)}, now, 1024)
	assert.ErrorIs(t, err, ErrTooLarge)

	// Exactly at the limit is kept.
	e, err := Classify(Snapshot{Text: strings.Repeat("x", 1024)}, now, 1024)
	require.NoError(t, err)
	assert.Len(t, e.Text, 1024)
}

func TestClassify_KeepsWhitespaceText(t *testing.T) {
	for _, text := range []string{" ", "\t", "   \n\t"} {
		e, err := Classify(Snapshot{Text: text}, now, 1024)
		require.NoError(t, err, "%q", text)
		assert.Equal(t, domain.EntryTypeText, e.Type)
		assert.Equal(t, text, e.Text)
		assert.Equal(t, fingerprint.Entry(e), e.HashKey)
	}
}

func TestClassify_ImageIgnoresTextLimit(t *testing.T) {
	e, err := Classify(Snapshot{Image: make([]byte, 4096), ImageMime: "image/png"}, now, 1024)
	require.NoError(t, err)
	assert.Equal(t, domain.EntryTypeImage, e.Type)
	assert.Len(t, e.Blob, 4096)
}

func TestHTMLToMarkdown_PlainPassthrough(t *testing.T) {
	assert.Equal(t, "1 < 2 and 3 > 2", htmlToMarkdown("1 < 2 and 3 > 2"))
}
