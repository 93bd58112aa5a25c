// Package fingerprint derives the content hash used as an entry's dedup key.
package fingerprint

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/Mopip77/pasteV/internal/domain"
)

// Size is the length of a fingerprint in hex characters.
const Size = blake2b.Size256 * 2

// Compute returns the hex BLAKE2b-256 digest of the entry type and content.
// The type is part of the input so identical bytes captured as text and as
// a file reference remain distinct entries.
func Compute(t domain.EntryType, content []byte) string {
	h, _ := blake2b.New256(nil) // only errors on an oversized key
	h.Write([]byte(t))
	h.Write([]byte{0})
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Text is Compute for string payloads.
func Text(t domain.EntryType, s string) string {
	return Compute(t, []byte(s))
}

// Entry fingerprints a candidate by its type: the blob for images, the text
// otherwise.
func Entry(e *domain.ClipboardEntry) string {
	if e.Type == domain.EntryTypeImage {
		return Compute(e.Type, e.Blob)
	}
	return Text(e.Type, e.Text)
}
