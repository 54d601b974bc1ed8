// Package integrity provides tamper-evident hashing and Merkle tree
// construction for candidate provenance and review audit trails. All
// functions are pure and deterministic.
package integrity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// hashV2Prefix marks the current length-prefixed encoding. Keeping a prefix
// even with a single live format leaves room for a future v3 without an
// ambiguous migration.
const hashV2Prefix = "v2:"

// ComputeCandidateHash produces a versioned SHA-256 hex digest over a
// candidate's identity and value, so storage can detect any out-of-band
// mutation of a row that should otherwise be append-only.
//
// retrievedAt is truncated to microsecond precision before hashing: SQLite's
// TEXT datetime storage round-trips at microsecond resolution, and hashing
// at nanosecond precision would make a hash computed before a DB round trip
// never match one recomputed after.
func ComputeCandidateHash(category, productID, fieldKey, candidateID, value string, retrievedAt time.Time) string {
	return hashV2Prefix + computeV2Hash(category, productID, fieldKey, candidateID, value, retrievedAt.Truncate(time.Microsecond))
}

// VerifyCandidateHash checks whether a stored hash matches the recomputed hash.
func VerifyCandidateHash(stored, category, productID, fieldKey, candidateID, value string, retrievedAt time.Time) bool {
	return stored == ComputeCandidateHash(category, productID, fieldKey, candidateID, value, retrievedAt)
}

// computeV2Hash produces a length-prefixed SHA-256 hex digest. Each field is
// encoded as a 4-byte big-endian length prefix followed by the field bytes,
// avoiding delimiter collisions when freeform fields contain arbitrary text.
func computeV2Hash(category, productID, fieldKey, candidateID, value string, retrievedAt time.Time) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(category)
	writeField(productID)
	writeField(fieldKey)
	writeField(candidateID)
	writeField(value)
	writeField(retrievedAt.UTC().Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}

// hashPair produces SHA-256(0x01 || len(a) || a || b) as a hex string. The
// 0x01 prefix domain-separates internal Merkle nodes from leaf content
// hashes (per RFC 6962); the length prefix on a prevents boundary-ambiguity
// second preimages (hashPair("ab","c") != hashPair("a","bc")).
func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01})
	aBytes := []byte(a)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(aBytes)))
	h.Write(lenBuf[:])
	h.Write(aBytes)
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes and returns the
// root. Leaves must be sorted by the caller for determinism. Returns "" for
// no leaves, and the leaf itself for a single leaf. Odd-length levels hash
// the last node with itself for structural binding.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}

	return level[0]
}
