package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize
)

var errChainUninitialised = errors.New("ratchet chain key is uninitialised")

// InitAsInitiator seeds the sending chain from root using a fresh ratchet
// key pair and the peer's identity public key as the first remote ratchet
// key.
func InitAsInitiator(root []byte, peerIdentity domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}

	dh, err := crypto.DH(priv, peerIdentity)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRK, sendCK := kdfRK(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:   newRK,
		DHPriv:    priv,
		DHPub:     pub,
		PeerDHPub: peerIdentity, // placeholder until the first remote ratchet pub arrives
		SendCK:    sendCK,
		Skipped:   make(map[string][]byte),
	}, nil
}

// InitAsResponder seeds the receiving chain from root using our identity
// private key and the initiator's first ratchet public key.
func InitAsResponder(root []byte, ourIDPriv domain.X25519Private, senderRatchetPub domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}

	dh, err := crypto.DH(ourIDPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRK, recvCK := kdfRK(root, dh[:])
	memzero.Zero(dh[:])

	return domain.RatchetState{
		RootKey:   newRK,
		DHPriv:    priv,
		DHPub:     pub,
		PeerDHPub: senderRatchetPub,
		RecvCK:    recvCK,
		Skipped:   make(map[string][]byte),
	}, nil
}

// Encrypt derives the next message key, seals plaintext and advances the
// send counter. The responder's first send performs a DH ratchet step to
// initialise its sending chain.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	if len(st.SendCK) == 0 {
		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		dh, err := crypto.DH(newPriv, st.PeerDHPub)
		if err != nil {
			return domain.RatchetHeader{}, nil, err
		}
		rk2, sendCK := kdfRK(st.RootKey, dh[:])
		memzero.Zero(dh[:])

		st.PN = st.Ns
		st.Ns = 0
		st.RootKey = rk2
		st.DHPriv, st.DHPub = newPriv, newPub
		st.SendCK = sendCK
	}

	nextCK, mk := kdfCK(st.SendCK)
	h := domain.RatchetHeader{DHPub: st.DHPub.Slice(), PN: st.PN, N: st.Ns}

	ct, err := seal(mk, h, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	st.SendCK = nextCK
	st.Ns++
	return h, ct, nil
}

// Decrypt opens a message, bridging gaps up to maxSkip derived keys and
// performing a DH step when the header carries a new remote ratchet key.
//
// Errors:
//   - domain.ErrReplayRejected: index behind the receive floor with no
//     stored skipped key
//   - domain.ErrRatchetGapExceeded: bridging would exceed maxSkip
//   - domain.ErrAuthenticationFailure: tag mismatch or malformed input
//
// On any error the state is unchanged.
func Decrypt(st *domain.RatchetState, ad []byte, header domain.RatchetHeader, ciphertext []byte, maxSkip uint32) ([]byte, error) {
	if len(header.DHPub) != 32 {
		return nil, domain.ErrAuthenticationFailure
	}

	// Work on a scratch copy; commit only after the tag verifies.
	scratch := cloneState(st)

	// Skipped keys are stored under the remote ratchet pub of the chain
	// they belong to, so the lookup serves delayed messages from earlier
	// chains after a DH step as well as from the current one.
	var headerPub domain.X25519Public
	copy(headerPub[:], header.DHPub)
	if mk, ok := scratch.Skipped[skippedKeyID(headerPub, header.N)]; ok {
		pt, err := open(mk, header, ad, ciphertext)
		if err != nil {
			return nil, domain.ErrAuthenticationFailure
		}
		delete(scratch.Skipped, skippedKeyID(headerPub, header.N))
		memzero.Zero(mk)
		*st = scratch
		return pt, nil
	}

	if equal32(scratch.PeerDHPub[:], header.DHPub) {
		if header.N < scratch.Nr {
			return nil, domain.ErrReplayRejected
		}
		if err := skipTo(&scratch, header.N, maxSkip); err != nil {
			return nil, err
		}
	} else {
		// New remote ratchet key: finish the old receiving chain, then
		// advance both chains.
		if err := skipTo(&scratch, header.PN, maxSkip); err != nil {
			return nil, err
		}
		if err := dhStep(&scratch, header.DHPub); err != nil {
			return nil, err
		}
		if err := skipTo(&scratch, header.N, maxSkip); err != nil {
			return nil, err
		}
	}

	if len(scratch.RecvCK) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfCK(scratch.RecvCK)
	pt, err := open(mk, header, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, domain.ErrAuthenticationFailure
	}
	scratch.RecvCK = nextCK
	scratch.Nr++
	*st = scratch
	return pt, nil
}

// --- state transitions ---

// dhStep advances the receiving chain with the new remote key, then rolls
// our own ratchet key and the sending chain.
func dhStep(st *domain.RatchetState, remotePub []byte) error {
	var newPeer domain.X25519Public
	copy(newPeer[:], remotePub)

	dh, err := crypto.DH(st.DHPriv, newPeer)
	if err != nil {
		return err
	}
	rk2, recvCK := kdfRK(st.RootKey, dh[:])
	memzero.Zero(dh[:])

	newPriv, newPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh2, err := crypto.DH(newPriv, newPeer)
	if err != nil {
		return err
	}
	rk3, sendCK := kdfRK(rk2, dh2[:])
	memzero.Zero(dh2[:])

	st.PN = st.Ns
	st.Ns, st.Nr = 0, 0
	st.RootKey = rk3
	st.DHPriv, st.DHPub = newPriv, newPub
	st.PeerDHPub = newPeer
	st.SendCK, st.RecvCK = sendCK, recvCK
	return nil
}

// skipTo derives and stores message keys up to (but excluding) until.
// Refuses rather than evicts when the bound would be exceeded.
func skipTo(st *domain.RatchetState, until uint32, maxSkip uint32) error {
	if until <= st.Nr {
		return nil
	}
	if until-st.Nr > maxSkip {
		return domain.ErrRatchetGapExceeded
	}
	if len(st.RecvCK) == 0 {
		return errChainUninitialised
	}
	for st.Nr < until {
		if uint32(len(st.Skipped)) >= maxSkip {
			return domain.ErrRatchetGapExceeded
		}
		nextCK, mk := kdfCK(st.RecvCK)
		st.Skipped[skippedKeyID(st.PeerDHPub, st.Nr)] = mk
		st.RecvCK = nextCK
		st.Nr++
	}
	return nil
}

func cloneState(st *domain.RatchetState) domain.RatchetState {
	cp := *st
	cp.RootKey = append([]byte(nil), st.RootKey...)
	cp.SendCK = append([]byte(nil), st.SendCK...)
	cp.RecvCK = append([]byte(nil), st.RecvCK...)
	cp.Skipped = make(map[string][]byte, len(st.Skipped))
	for k, v := range st.Skipped {
		cp.Skipped[k] = append([]byte(nil), v...)
	}
	if len(st.SendCK) == 0 {
		cp.SendCK = nil
	}
	if len(st.RecvCK) == 0 {
		cp.RecvCK = nil
	}
	return cp
}

// --- sealing ---

func seal(mk []byte, header domain.RatchetHeader, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	// The message key is unique per index, so a nonce derived from the
	// index never repeats under the same key.
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.N)
	return aead.Seal(nil, nonce, plaintext, fullAD(ad, header)), nil
}

func open(mk []byte, header domain.RatchetHeader, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.N)
	return aead.Open(nil, nonce, ciphertext, fullAD(ad, header))
}

// fullAD binds the header into the authenticated data.
func fullAD(ad []byte, h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(ad)+len(h.DHPub)+8)
	out = append(out, ad...)
	out = append(out, h.DHPub...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PN)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.N)
	out = append(out, b[:]...)
	return out
}

// --- KDFs ---

func kdfRK(rk, dh []byte) (newRK, ck []byte) {
	r := hkdf.New(sha256.New, dh, rk, []byte("keymesh/dr/root"))
	newRK = make([]byte, 32)
	ck = make([]byte, 32)
	_, _ = io.ReadFull(r, newRK)
	_, _ = io.ReadFull(r, ck)
	return
}

func kdfCK(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("keymesh/dr/chain"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func skippedKeyID(peer domain.X25519Public, n uint32) string {
	b := make([]byte, 32+4)
	copy(b, peer[:])
	binary.BigEndian.PutUint32(b[32:], n)
	return string(b)
}

func equal32(a, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	var v byte
	for i := 0; i < 32; i++ {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
