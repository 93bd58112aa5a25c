// Package normalize cleans up free-form strings that arrive from clipboard
// tools, AI responses, and configuration.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxTags is the number of tags kept per entry.
const MaxTags = 3

// maxTagRunes bounds a single tag; longer values are truncated.
const maxTagRunes = 32

// Tag returns the canonical form of a tag: NFKC, lower case, trimmed, inner
// whitespace collapsed to single spaces, and surrounding '#' removed.
// "  ＃Go  Lang " -> "go lang".
func Tag(raw string) string {
	s := norm.NFKC.String(Text(raw))
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	s = strings.Trim(s, "#")
	s = strings.TrimSpace(s)

	if utf8.RuneCountInString(s) > maxTagRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxTagRunes]))
	}
	return s
}

// Tags canonicalizes raw tags, dropping empties and duplicates, and keeps at
// most MaxTags in input order.
func Tags(raw []string) []string {
	out := make([]string, 0, min(len(raw), MaxTags))
	seen := make(map[string]struct{}, len(raw))

	for _, r := range raw {
		t := Tag(r)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}

// Text drops NUL bytes and invalid UTF-8, which some clipboard owners leave
// at the end of a selection.
func Text(s string) string {
	if !strings.ContainsRune(s, 0) && utf8.ValidString(s) {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
