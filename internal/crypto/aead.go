package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"keymesh/internal/domain"
)

const (
	// KeyBytes is the symmetric key size used everywhere.
	KeyBytes = chacha20poly1305.KeySize
	// NonceBytes is the AEAD nonce size.
	NonceBytes = chacha20poly1305.NonceSize
	// SaltBytes is the KDF salt size.
	SaltBytes = 16
)

// Seal encrypts plaintext with a fresh random nonce and returns both. The
// Poly1305 tag is appended to the ciphertext. Callers must never reuse a
// (key, nonce) pair; the random nonce keeps that contract for them.
func Seal(key domain.Secret, plaintext, ad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key.Reveal())
	if err != nil {
		return nil, nil, fmt.Errorf("aead init: %w", err)
	}
	nonce = make([]byte, NonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

// Open decrypts and authenticates ciphertext. Any tag mismatch, wrong key
// or truncated input yields domain.ErrAuthenticationFailure and no partial
// plaintext.
func Open(key domain.Secret, nonce, ciphertext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key.Reveal())
	if err != nil {
		return nil, fmt.Errorf("aead init: %w", err)
	}
	if len(nonce) != NonceBytes {
		return nil, domain.ErrAuthenticationFailure
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, domain.ErrAuthenticationFailure
	}
	return pt, nil
}
