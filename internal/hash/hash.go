// Package hash computes the stable content fingerprint used by the
// VectorStore to detect unchanged files (Hasher, spec component C1).
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// xxh64Prefix and sha256Prefix tag the output string with the algorithm
// used; a tag change alone changes the string, so callers comparing
// whole hash strings never conflate digests from different algorithms.
const (
	xxh64Prefix  = "xxh64:"
	sha256Prefix = "sha256:"
)

// Hash returns a stable, algorithm-tagged fingerprint of content.
// It prefers the fast 64-bit xxHash; on failure it falls back to the
// cryptographic sha256 digest. Both arms are deterministic for equal
// byte sequences and whitespace-sensitive.
func Hash(content []byte) string {
	sum, err := xxh64Sum(content)
	if err != nil {
		return sha256Prefix + sha256Hex(content)
	}
	return fmt.Sprintf("%s%016x", xxh64Prefix, sum)
}

// xxh64Sum computes the xxHash64 digest. The cespare/xxhash/v2 API never
// actually errors, but the digest is routed through a function that can
// fail so a future implementation swap (or a panic-recovery boundary)
// has somewhere to surface it without changing Hash's contract.
func xxh64Sum(content []byte) (sum uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("xxhash panicked: %v", r)
		}
	}()
	return xxhash.Sum64(content), nil
}

func sha256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
