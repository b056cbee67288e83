package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"keymesh/internal/crypto"
	"keymesh/internal/util/memzero"
)

// Version of the encrypted envelope format written to disk.
const envelopeVersion = 1

// Upper bounds for KDF parameters read back from disk. The file is
// untrusted input; deriving must not start on parameters that would
// burn unbounded memory before the tag check can fail.
const (
	maxScryptN = 1 << 20
	maxScryptR = 32
	maxScryptP = 16
)

// ErrWrongPassphrase is returned when the passphrase is incorrect or the
// ciphertext has been modified. The two cases are not distinguished.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted key file")

// envelope is the on-disk JSON structure holding ciphertext and KDF
// parameters for passphrase-protected files.
type envelope struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

func scryptParamsDefault() (N, r, p int) { return 1 << 15, 8, 1 }

// sealEnvelope encrypts plaintext under a key derived from passphrase.
func sealEnvelope(passphrase string, plaintext []byte) ([]byte, error) {
	salt, err := crypto.RandomSalt()
	if err != nil {
		return nil, err
	}
	N, r, p := scryptParamsDefault()
	key, err := scrypt.Key([]byte(passphrase), salt, N, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.RandomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, envelopeAAD(envelopeVersion, salt, N, r, p))
	return json.Marshal(envelope{V: envelopeVersion, Salt: salt, N: N, R: r, P: p, Nonce: nonce, Cipher: ct})
}

// openEnvelope decrypts a blob produced by sealEnvelope. Any failure after
// parsing is reported uniformly as ErrWrongPassphrase.
func openEnvelope(passphrase string, blob []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, ErrWrongPassphrase
	}
	if env.V != envelopeVersion {
		return nil, ErrWrongPassphrase
	}
	if env.N <= 1 || env.N > maxScryptN || env.R <= 0 || env.R > maxScryptR || env.P <= 0 || env.P > maxScryptP {
		return nil, ErrWrongPassphrase
	}
	key, err := scrypt.Key([]byte(passphrase), env.Salt, env.N, env.R, env.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	pt, err := aead.Open(nil, env.Nonce, env.Cipher, envelopeAAD(env.V, env.Salt, env.N, env.R, env.P))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// envelopeAAD binds the version and KDF parameters into the tag, so a
// rewritten header cannot steer key derivation.
func envelopeAAD(v int, salt []byte, N, r, p int) []byte {
	out := make([]byte, 0, 16+len(salt))
	var b [4]byte
	for _, u := range []int{v, N, r, p} {
		binary.BigEndian.PutUint32(b[:], uint32(u))
		out = append(out, b[:]...)
	}
	return append(out, salt...)
}
