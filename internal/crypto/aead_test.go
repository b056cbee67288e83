package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
)

func makeKey(t *testing.T) domain.Secret {
	t.Helper()
	b, err := crypto.RandomBytes(crypto.KeyBytes)
	if err != nil {
		t.Fatalf("RandomBytes: %v", err)
	}
	return domain.NewSecret(b)
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := makeKey(t)
	pt := []byte("the quick brown fox")
	ad := []byte("conv-1|0")

	nonce, ct, err := crypto.Seal(key, pt, ad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := crypto.Open(key, nonce, ct, ad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("got %q, want %q", got, pt)
	}
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := makeKey(t)
	n1, _, err := crypto.Seal(key, []byte("a"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	n2, _, err := crypto.Seal(key, []byte("a"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatal("nonce reused across calls")
	}
}

func TestOpen_FailsClosedOnAnyBitFlip(t *testing.T) {
	key := makeKey(t)
	pt := []byte("payload")
	nonce, ct, err := crypto.Seal(key, pt, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Flip every bit of the ciphertext (covers body and tag) and of the
	// nonce; each mutation must fail authentication.
	for i := range ct {
		for bit := 0; bit < 8; bit++ {
			tampered := append([]byte(nil), ct...)
			tampered[i] ^= 1 << bit
			if _, err := crypto.Open(key, nonce, tampered, nil); !errors.Is(err, domain.ErrAuthenticationFailure) {
				t.Fatalf("ciphertext byte %d bit %d: got %v, want ErrAuthenticationFailure", i, bit, err)
			}
		}
	}
	for i := range nonce {
		tampered := append([]byte(nil), nonce...)
		tampered[i] ^= 0x01
		if _, err := crypto.Open(key, tampered, ct, nil); !errors.Is(err, domain.ErrAuthenticationFailure) {
			t.Fatalf("nonce byte %d: got %v, want ErrAuthenticationFailure", i, err)
		}
	}
}

func TestOpen_TruncatedInput(t *testing.T) {
	key := makeKey(t)
	nonce, ct, err := crypto.Seal(key, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := crypto.Open(key, nonce, ct[:len(ct)-1], nil); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Fatalf("truncated ciphertext: got %v", err)
	}
	if _, err := crypto.Open(key, nonce[:4], ct, nil); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Fatalf("truncated nonce: got %v", err)
	}
}

func TestOpen_WrongAssociatedData(t *testing.T) {
	key := makeKey(t)
	nonce, ct, err := crypto.Seal(key, []byte("payload"), []byte("ad-1"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := crypto.Open(key, nonce, ct, []byte("ad-2")); !errors.Is(err, domain.ErrAuthenticationFailure) {
		t.Fatalf("wrong ad: got %v", err)
	}
}
