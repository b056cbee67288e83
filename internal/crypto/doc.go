// Package crypto exposes the primitives the rest of keymesh is built on.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Authenticated encryption with ChaCha20-Poly1305 (Seal, Open)
//   - Password-based key derivation with PBKDF2-SHA256 (DeriveKey)
//   - Random salts and nonces, short public-key fingerprints
//
// # Notes
//
// All functions return the fixed-size types defined in internal/domain.
// Open fails closed: a tag mismatch or truncated input yields
// domain.ErrAuthenticationFailure and no partial plaintext. Callers should
// treat returned secrets as sensitive and wipe them when practical.
package crypto
