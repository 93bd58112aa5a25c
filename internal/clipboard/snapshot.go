// Package clipboard reads the system clipboard and turns what it finds into
// history candidates.
package clipboard

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/Mopip77/pasteV/internal/domain"
	"github.com/Mopip77/pasteV/internal/fingerprint"
	"github.com/Mopip77/pasteV/internal/normalize"
)

// Snapshot is one read of the clipboard. Any combination of fields may be set;
// Classify decides which one becomes the entry.
type Snapshot struct {
	Image     []byte
	ImageMime string
	FileURIs  []string // file:// URIs, in clipboard order
	Text      string
	HTML      string
}

// Empty reports whether the clipboard held nothing usable.
func (s Snapshot) Empty() bool {
	return len(s.Image) == 0 && len(s.FileURIs) == 0 && s.Text == "" && s.HTML == ""
}

// Reader reads the current clipboard contents.
type Reader interface {
	Read(ctx context.Context) (Snapshot, error)
}

// Reasons a snapshot produces no candidate.
var (
	ErrEmpty    = errors.New("clipboard empty")
	ErrTooLarge = errors.New("clipboard text exceeds size limit")
)

// Classify builds a candidate entry from a snapshot: an image wins over a
// file reference, which wins over text. HTML-only snapshots are converted to
// markdown. Text over maxTextBytes is rejected with ErrTooLarge.
func Classify(s Snapshot, now time.Time, maxTextBytes int) (*domain.ClipboardEntry, error) {
	e := &domain.ClipboardEntry{
		CreateTime:   now,
		LastReadTime: now,
	}

	switch {
	case len(s.Image) > 0:
		e.Type = domain.EntryTypeImage
		e.Blob = s.Image
	case len(s.FileURIs) > 0:
		e.Type = domain.EntryTypeFile
		e.Text = strings.Join(s.FileURIs, "\n")
	default:
		e.Type = domain.EntryTypeText
		e.Text = normalize.Text(s.Text)
		if e.Text == "" && s.HTML != "" {
			e.Text = htmlToMarkdown(normalize.Text(s.HTML))
		}
	}

	if e.Type != domain.EntryTypeImage {
		if e.Text == "" {
			return nil, ErrEmpty
		}
		if maxTextBytes > 0 && len(e.Text) > maxTextBytes {
			return nil, ErrTooLarge
		}
	}

	e.HashKey = fingerprint.Entry(e)
	return e, nil
}

// htmlTagPattern detects markup worth converting.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote|table|pre|code)[\s>/]`)

// htmlToMarkdown converts an HTML fragment to markdown. Strings without
// recognizable markup, and fragments the converter rejects, are returned as is.
func htmlToMarkdown(s string) string {
	if !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}
