package integrity

import (
	"strings"
	"testing"
	"time"
)

func TestComputeCandidateHash_Deterministic(t *testing.T) {
	retrievedAt := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	h1 := ComputeCandidateHash("mice", "logi-g502x", "dpi_max", "dpi_max::0", "25600", retrievedAt)
	h2 := ComputeCandidateHash("mice", "logi-g502x", "dpi_max", "dpi_max::0", "25600", retrievedAt)

	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
	if !strings.HasPrefix(h1, "v2:") {
		t.Fatalf("expected v2: prefix, got %q", h1)
	}
	if len(h1) != 67 {
		t.Fatalf("expected 67-char v2 hash (3 prefix + 64 hex), got %d chars", len(h1))
	}
}

func TestComputeCandidateHash_DifferentInputs(t *testing.T) {
	retrievedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	h1 := ComputeCandidateHash("mice", "logi-g502x", "dpi_max", "dpi_max::0", "25600", retrievedAt)
	h2 := ComputeCandidateHash("mice", "logi-g502x", "dpi_max", "dpi_max::0", "16000", retrievedAt)

	if h1 == h2 {
		t.Fatal("different values should produce different hashes")
	}
}

func TestVerifyCandidateHash(t *testing.T) {
	retrievedAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	hash := ComputeCandidateHash("mice", "logi-g502x", "weight_g", "weight_g::0", "89", retrievedAt)

	if !VerifyCandidateHash(hash, "mice", "logi-g502x", "weight_g", "weight_g::0", "89", retrievedAt) {
		t.Fatal("verification should succeed for matching inputs")
	}
	if VerifyCandidateHash(hash, "mice", "logi-g502x", "weight_g", "weight_g::0", "90", retrievedAt) {
		t.Fatal("verification should fail for a changed value")
	}
	if VerifyCandidateHash("tampered_hash", "mice", "logi-g502x", "weight_g", "weight_g::0", "89", retrievedAt) {
		t.Fatal("verification should fail for a tampered hash")
	}
}

func TestCandidateHashAvoidsFieldBoundaryCollision(t *testing.T) {
	retrievedAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	h1 := ComputeCandidateHash("mice", "ab", "c", "id", "v", retrievedAt)
	h2 := ComputeCandidateHash("mice", "a", "bc", "id", "v", retrievedAt)

	if h1 == h2 {
		t.Fatal("hashes should not collide when field boundaries shift")
	}
}

func TestBuildMerkleRoot_Empty(t *testing.T) {
	root := BuildMerkleRoot(nil)
	if root != "" {
		t.Fatalf("empty input should produce empty root, got %q", root)
	}
}

func TestBuildMerkleRoot_SingleLeaf(t *testing.T) {
	leaf := "abc123"
	root := BuildMerkleRoot([]string{leaf})
	if root != leaf {
		t.Fatalf("single leaf should be the root: got %q, want %q", root, leaf)
	}
}

func TestBuildMerkleRoot_Deterministic(t *testing.T) {
	leaves := []string{"hash_a", "hash_b", "hash_c", "hash_d"}

	r1 := BuildMerkleRoot(leaves)
	r2 := BuildMerkleRoot(leaves)

	if r1 != r2 {
		t.Fatalf("Merkle root not deterministic: %q != %q", r1, r2)
	}
	if len(r1) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(r1))
	}
}

func TestBuildMerkleRoot_OrderMatters(t *testing.T) {
	r1 := BuildMerkleRoot([]string{"a", "b", "c"})
	r2 := BuildMerkleRoot([]string{"b", "a", "c"})

	if r1 == r2 {
		t.Fatal("different leaf ordering should produce different roots")
	}
}

func TestBuildMerkleRoot_OddLeafCount(t *testing.T) {
	root := BuildMerkleRoot([]string{"x", "y", "z"})
	if root == "" {
		t.Fatal("odd leaf count should still produce a root")
	}
	if len(root) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 root, got %d chars", len(root))
	}
}
