package ratchet_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/protocol/ratchet"
)

const maxSkip = 64

// newPair returns initiator and responder states seeded from the same root,
// as a completed key agreement would leave them.
func newPair(t *testing.T) (a, b domain.RatchetState) {
	t.Helper()
	rk := bytes.Repeat([]byte{0x42}, 32)

	bPriv, bPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	a, err = ratchet.InitAsInitiator(rk, bPub)
	if err != nil {
		t.Fatalf("InitAsInitiator: %v", err)
	}
	b, err = ratchet.InitAsResponder(rk, bPriv, a.DHPub)
	if err != nil {
		t.Fatalf("InitAsResponder: %v", err)
	}
	return a, b
}

func TestEncryptDecrypt_OneRoundTrip(t *testing.T) {
	a, b := newPair(t)

	header, ct, err := ratchet.Encrypt(&a, nil, []byte("hi"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := ratchet.Decrypt(&b, nil, header, ct, maxSkip)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hi" {
		t.Fatalf("got %q, want %q", pt, "hi")
	}
}

func TestEncryptDecrypt_PingPong(t *testing.T) {
	a, b := newPair(t)

	for i := 0; i < 6; i++ {
		msgAB := fmt.Sprintf("a->b %d", i)
		h, ct, err := ratchet.Encrypt(&a, nil, []byte(msgAB))
		if err != nil {
			t.Fatalf("Encrypt a->b %d: %v", i, err)
		}
		pt, err := ratchet.Decrypt(&b, nil, h, ct, maxSkip)
		if err != nil {
			t.Fatalf("Decrypt a->b %d: %v", i, err)
		}
		if string(pt) != msgAB {
			t.Fatalf("a->b %d: got %q", i, pt)
		}

		msgBA := fmt.Sprintf("b->a %d", i)
		h, ct, err = ratchet.Encrypt(&b, nil, []byte(msgBA))
		if err != nil {
			t.Fatalf("Encrypt b->a %d: %v", i, err)
		}
		pt, err = ratchet.Decrypt(&a, nil, h, ct, maxSkip)
		if err != nil {
			t.Fatalf("Decrypt b->a %d: %v", i, err)
		}
		if string(pt) != msgBA {
			t.Fatalf("b->a %d: got %q", i, pt)
		}
	}
}

func TestDecrypt_OutOfOrderViaSkippedKeys(t *testing.T) {
	a, b := newPair(t)

	type msg struct {
		h  domain.RatchetHeader
		ct []byte
	}
	var msgs []msg
	for i := 0; i < 3; i++ {
		h, ct, err := ratchet.Encrypt(&a, nil, []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		msgs = append(msgs, msg{h, ct})
	}

	// Deliver the last message first; the earlier keys are derived and kept.
	pt, err := ratchet.Decrypt(&b, nil, msgs[2].h, msgs[2].ct, maxSkip)
	if err != nil {
		t.Fatalf("Decrypt m2: %v", err)
	}
	if string(pt) != "m2" {
		t.Fatalf("got %q", pt)
	}

	pt, err = ratchet.Decrypt(&b, nil, msgs[0].h, msgs[0].ct, maxSkip)
	if err != nil {
		t.Fatalf("Decrypt m0 after m2: %v", err)
	}
	if string(pt) != "m0" {
		t.Fatalf("got %q", pt)
	}
	if _, err = ratchet.Decrypt(&b, nil, msgs[1].h, msgs[1].ct, maxSkip); err != nil {
		t.Fatalf("Decrypt m1 after m2: %v", err)
	}
}

func TestDecrypt_ReplayRejected(t *testing.T) {
	a, b := newPair(t)

	h, ct, err := ratchet.Encrypt(&a, nil, []byte("once"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := ratchet.Decrypt(&b, nil, h, ct, maxSkip); err != nil {
		t.Fatalf("first Decrypt: %v", err)
	}
	if _, err := ratchet.Decrypt(&b, nil, h, ct, maxSkip); !errors.Is(err, domain.ErrReplayRejected) {
		t.Fatalf("second Decrypt: got %v, want ErrReplayRejected", err)
	}
}

func TestDecrypt_ReplayOfSkippedKeyRejected(t *testing.T) {
	a, b := newPair(t)

	h0, ct0, _ := ratchet.Encrypt(&a, nil, []byte("m0"))
	h1, ct1, _ := ratchet.Encrypt(&a, nil, []byte("m1"))

	if _, err := ratchet.Decrypt(&b, nil, h1, ct1, maxSkip); err != nil {
		t.Fatalf("Decrypt m1: %v", err)
	}
	if _, err := ratchet.Decrypt(&b, nil, h0, ct0, maxSkip); err != nil {
		t.Fatalf("Decrypt m0: %v", err)
	}
	// The skipped key is consumed; a second delivery is a replay.
	if _, err := ratchet.Decrypt(&b, nil, h0, ct0, maxSkip); !errors.Is(err, domain.ErrReplayRejected) {
		t.Fatalf("replay of m0: got %v, want ErrReplayRejected", err)
	}
}

func TestDecrypt_GapBound(t *testing.T) {
	a, b := newPair(t)

	var last struct {
		h  domain.RatchetHeader
		ct []byte
	}
	var first struct {
		h  domain.RatchetHeader
		ct []byte
	}
	for i := 0; i < 10; i++ {
		h, ct, err := ratchet.Encrypt(&a, nil, []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		if i == 0 {
			first.h, first.ct = h, ct
		}
		last.h, last.ct = h, ct
	}

	// Bridging to index 9 needs 9 skipped keys; the bound is 5.
	if _, err := ratchet.Decrypt(&b, nil, last.h, last.ct, 5); !errors.Is(err, domain.ErrRatchetGapExceeded) {
		t.Fatalf("got %v, want ErrRatchetGapExceeded", err)
	}
	// The rejection must not have advanced the chain.
	pt, err := ratchet.Decrypt(&b, nil, first.h, first.ct, 5)
	if err != nil {
		t.Fatalf("Decrypt m0 after rejected gap: %v", err)
	}
	if string(pt) != "m0" {
		t.Fatalf("got %q", pt)
	}
}

func TestDecrypt_TamperedCiphertextLeavesStateUsable(t *testing.T) {
	a, b := newPair(t)

	h, ct, err := ratchet.Encrypt(&a, nil, []byte("intact"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff
	if _, err := ratchet.Decrypt(&b, nil, h, tampered, maxSkip); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Fatalf("tampered: got %v, want ErrAuthenticationFailure", err)
	}

	// The failed attempt must not consume the message key.
	pt, err := ratchet.Decrypt(&b, nil, h, ct, maxSkip)
	if err != nil {
		t.Fatalf("Decrypt original after tamper: %v", err)
	}
	if string(pt) != "intact" {
		t.Fatalf("got %q", pt)
	}
}

func TestEncrypt_NeverReusesRatchetState(t *testing.T) {
	a, _ := newPair(t)

	h1, _, err := ratchet.Encrypt(&a, nil, []byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	h2, _, err := ratchet.Encrypt(&a, nil, []byte("x"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if h1.N == h2.N {
		t.Fatal("two messages encrypted from the same ratchet index")
	}
}

func TestDecrypt_OutOfOrderAcrossDHStep(t *testing.T) {
	a, b := newPair(t)

	h0, ct0, err := ratchet.Encrypt(&a, nil, []byte("m0"))
	if err != nil {
		t.Fatalf("Encrypt m0: %v", err)
	}
	h1, ct1, err := ratchet.Encrypt(&a, nil, []byte("m1"))
	if err != nil {
		t.Fatalf("Encrypt m1: %v", err)
	}

	// m1 arrives first; m0's key goes into the skipped map.
	if _, err := ratchet.Decrypt(&b, nil, h1, ct1, maxSkip); err != nil {
		t.Fatalf("Decrypt m1: %v", err)
	}

	// A full round trip steps both ratchets past the chain m0 belongs to.
	hb, ctb, err := ratchet.Encrypt(&b, nil, []byte("pong"))
	if err != nil {
		t.Fatalf("Encrypt pong: %v", err)
	}
	if _, err := ratchet.Decrypt(&a, nil, hb, ctb, maxSkip); err != nil {
		t.Fatalf("Decrypt pong: %v", err)
	}
	ha, cta, err := ratchet.Encrypt(&a, nil, []byte("ping"))
	if err != nil {
		t.Fatalf("Encrypt ping: %v", err)
	}
	if _, err := ratchet.Decrypt(&b, nil, ha, cta, maxSkip); err != nil {
		t.Fatalf("Decrypt ping: %v", err)
	}

	// The delayed m0 carries the previous chain's ratchet pub; its stored
	// key must still open it.
	pt, err := ratchet.Decrypt(&b, nil, h0, ct0, maxSkip)
	if err != nil {
		t.Fatalf("Decrypt delayed m0: %v", err)
	}
	if string(pt) != "m0" {
		t.Fatalf("got %q, want %q", pt, "m0")
	}

	// Consumed; a second delivery does not open.
	if _, err := ratchet.Decrypt(&b, nil, h0, ct0, maxSkip); err == nil {
		t.Fatal("redelivery of m0 accepted after its key was consumed")
	}
}
