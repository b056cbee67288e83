package crypto

import "crypto/rand"

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomSalt returns a fresh KDF salt.
func RandomSalt() ([]byte, error) { return RandomBytes(SaltBytes) }
