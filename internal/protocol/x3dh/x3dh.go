package x3dh

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/util/memzero"
)

const rootKeyInfo = "keymesh-x3dh-v1"

// InitiatorRootKey derives the root key on the side opening the session.
//
//	DH1 = DH(IK_a, SPK_b)
//	DH2 = DH(EK_a, IK_b)
//	DH3 = DH(EK_a, SPK_b)
//	DH4 = DH(EK_a, OPK_b)   (only when a one-time pre-key is present)
func InitiatorRootKey(
	ourIDPriv domain.X25519Private,
	ourEphPriv domain.X25519Private,
	peerIDPub domain.X25519Public,
	peerSPK domain.X25519Public,
	peerOPK *domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(ourIDPriv, peerSPK)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourEphPriv, peerIDPub)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(ourEphPriv, peerSPK)
	if err != nil {
		return nil, err
	}

	concat := make([]byte, 0, 32*4)
	concat = append(concat, dh1[:]...)
	concat = append(concat, dh2[:]...)
	concat = append(concat, dh3[:]...)

	if peerOPK != nil {
		dh4, err := crypto.DH(ourEphPriv, *peerOPK)
		if err != nil {
			return nil, err
		}
		concat = append(concat, dh4[:]...)
	}

	root := deriveRoot(concat)
	memzero.Zero(concat)
	return root, nil
}

// ResponderRootKey mirrors InitiatorRootKey on the side that published the
// pre-keys.
//
//	DH1 = DH(SPK_b, IK_a)
//	DH2 = DH(IK_b, EK_a)
//	DH3 = DH(SPK_b, EK_a)
//	DH4 = DH(OPK_b, EK_a)   (only when the initiator consumed one)
func ResponderRootKey(
	ourIDPriv domain.X25519Private,
	ourSPKPriv domain.X25519Private,
	ourOPKPriv *domain.X25519Private,
	peerIDPub domain.X25519Public,
	peerEphPub domain.X25519Public,
) ([]byte, error) {
	dh1, err := crypto.DH(ourSPKPriv, peerIDPub)
	if err != nil {
		return nil, err
	}
	dh2, err := crypto.DH(ourIDPriv, peerEphPub)
	if err != nil {
		return nil, err
	}
	dh3, err := crypto.DH(ourSPKPriv, peerEphPub)
	if err != nil {
		return nil, err
	}

	concat := make([]byte, 0, 32*4)
	concat = append(concat, dh1[:]...)
	concat = append(concat, dh2[:]...)
	concat = append(concat, dh3[:]...)

	if ourOPKPriv != nil {
		dh4, err := crypto.DH(*ourOPKPriv, peerEphPub)
		if err != nil {
			return nil, err
		}
		concat = append(concat, dh4[:]...)
	}

	root := deriveRoot(concat)
	memzero.Zero(concat)
	return root, nil
}

// VerifySignedPreKey checks the signature a device published over its
// signed pre-key.
func VerifySignedPreKey(signing domain.Ed25519Public, spk domain.X25519Public, sig []byte) bool {
	return crypto.VerifyEd25519(signing, spk.Slice(), sig)
}

func deriveRoot(ikm []byte) []byte {
	r := hkdf.New(sha256.New, ikm, nil, []byte(rootKeyInfo))
	root := make([]byte, 32)
	_, _ = io.ReadFull(r, root)
	return root
}
