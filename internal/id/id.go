// Package id generates short prefixed identifiers for transient objects such
// as event subscribers and enrichment runs. Clipboard entries are keyed by
// their fingerprint and never use these.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for generated identifiers.
const (
	PrefixSubscriber = "sub"
	PrefixRun        = "run"
)

// nanoid length; shorter than the library default since ids never leave the process.
const size = 12

// Generate returns prefix-nanoid, e.g. "sub-V1StGXR8_Z5j".
func Generate(prefix string) (string, error) {
	raw, err := gonanoid.New(size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + raw, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}
