// Package store persists keymesh state.
//
// The device identity lives in a passphrase-encrypted file (scrypt +
// ChaCha20-Poly1305 envelope). Everything with concurrency requirements --
// pairwise sessions, group sessions, session shares and pre-keys -- lives
// in SQLite, which supplies the uniqueness constraint that makes fan-out
// idempotent and the single-statement conditional update that makes claims
// atomic.
package store
