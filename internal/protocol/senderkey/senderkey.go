package senderkey

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/util/memzero"
)

// ChainKeyBytes is the sender-key chain key size.
const ChainKeyBytes = 32

// NewChainKey returns a fresh random chain key for a new session.
func NewChainKey() ([]byte, error) {
	return crypto.RandomBytes(ChainKeyBytes)
}

// Advance derives the next chain key and the message key for the current
// index.
func Advance(chainKey []byte) (next, messageKey []byte) {
	r := hkdf.New(sha256.New, chainKey, nil, []byte("keymesh/sk/chain"))
	next = make([]byte, ChainKeyBytes)
	messageKey = make([]byte, ChainKeyBytes)
	_, _ = io.ReadFull(r, next)
	_, _ = io.ReadFull(r, messageKey)
	return
}

// ChainKeyAt walks the chain forward from (base, baseIndex) to target,
// bounded by maxAdvance. Used to export key material to a late joiner so
// that earlier indexes stay out of reach.
func ChainKeyAt(base []byte, baseIndex, target, maxAdvance uint32) ([]byte, error) {
	if target < baseIndex {
		return nil, domain.ErrChainTooOld
	}
	if target-baseIndex > maxAdvance {
		return nil, domain.ErrRatchetGapExceeded
	}
	ck := append([]byte(nil), base...)
	for i := baseIndex; i < target; i++ {
		next, mk := Advance(ck)
		memzero.ZeroAll(ck, mk)
		ck = next
	}
	return ck, nil
}

// Seal encrypts plaintext at index with the chain key valid at that index
// and returns the advanced chain key alongside the ciphertext. The session
// id and index are bound as associated data; the nonce is derived from the
// index, which is safe because each message key is used exactly once.
func Seal(chainKey []byte, session domain.SessionID, index uint32, plaintext []byte) (nextChainKey, nonce, ciphertext []byte, err error) {
	next, mk := Advance(chainKey)
	defer memzero.Zero(mk)

	aead, err := chacha20poly1305.New(mk)
	if err != nil {
		return nil, nil, nil, err
	}
	nonce = indexNonce(index)
	ciphertext = aead.Seal(nil, nonce, plaintext, ad(session, index))
	return next, nonce, ciphertext, nil
}

// Open decrypts a message at index using a chain key copy pinned at
// baseIndex. Indexes below the base are unreachable by construction and
// yield domain.ErrChainTooOld; walking further than maxAdvance steps is
// refused.
func Open(baseChainKey []byte, baseIndex uint32, session domain.SessionID, index uint32, nonce, ciphertext []byte, maxAdvance uint32) ([]byte, error) {
	ck, err := ChainKeyAt(baseChainKey, baseIndex, index, maxAdvance)
	if err != nil {
		return nil, err
	}
	_, mk := Advance(ck)
	memzero.Zero(ck)
	defer memzero.Zero(mk)

	aead, err := chacha20poly1305.New(mk)
	if err != nil {
		return nil, err
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, domain.ErrAuthenticationFailure
	}
	pt, err := aead.Open(nil, nonce, ciphertext, ad(session, index))
	if err != nil {
		return nil, domain.ErrAuthenticationFailure
	}
	return pt, nil
}

func indexNonce(index uint32) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint32(nonce[chacha20poly1305.NonceSize-4:], index)
	return nonce
}

// ad binds the ciphertext to its session and position in the chain.
func ad(session domain.SessionID, index uint32) []byte {
	out := make([]byte, 0, len(session)+4)
	out = append(out, session...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], index)
	return append(out, b[:]...)
}
