package authz

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashCredential hashes a reviewer login credential (password or static
// bearer token) for storage. bcrypt replaces the teacher's Argon2id here —
// reviewer credentials are low-volume, interactively-entered secrets, not
// the high-throughput API keys Argon2's tunable memory cost was chosen for.
func HashCredential(credential string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("authz: hash credential: %w", err)
	}
	return string(hash), nil
}

// VerifyCredential checks a reviewer login credential against its bcrypt hash.
func VerifyCredential(credential, encoded string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(credential))
	return err == nil
}
