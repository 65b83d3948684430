// Package checksum fingerprints note files. The index stores one digest per
// note and re-indexes only files whose digest changed.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Equal reports whether data hashes to the given digest.
func Equal(data []byte, digest string) bool {
	return Sum(data) == digest
}
