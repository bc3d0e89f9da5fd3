// Package store holds the backing stores a package document is loaded from
// and saved to.
package store

import (
	"encoding/hex"
	"errors"

	"github.com/zeebo/blake3"
)

// ErrNotFound is returned when a store holds no text for the requested key.
var ErrNotFound = errors.New("package document not found")

// Digest returns the hex BLAKE3-256 digest of text. Stores compare digests
// to skip writes that would not change anything.
func Digest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
