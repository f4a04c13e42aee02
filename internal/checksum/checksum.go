// Package checksum produces stable content digests for documents, used as
// HTTP ETag values so clients can cache reads and detect content changes.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Equal content always
// yields an equal digest, so it doubles as a cheap equality check for
// document revisions.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
