package crypto

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"keymesh/internal/domain"
)

// MinKDFIterations is the floor DeriveKey enforces regardless of
// configuration.
const MinKDFIterations = 100_000

// KDFName tags blobs produced by DeriveKey.
const KDFName = "pbkdf2-sha256"

// DeriveKey stretches a password into a symmetric key. Deterministic: the
// same password, salt and iteration count always yield the same key. The
// password is not retained; the caller owns wiping the result.
func DeriveKey(password string, salt []byte, iterations int) domain.Secret {
	if iterations < MinKDFIterations {
		iterations = MinKDFIterations
	}
	key := pbkdf2.Key([]byte(password), salt, iterations, KeyBytes, sha256.New)
	s := domain.NewSecret(key)
	for i := range key {
		key[i] = 0
	}
	return s
}
