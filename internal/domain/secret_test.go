package domain_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"keymesh/internal/domain"
)

func TestSecret_NeverFormats(t *testing.T) {
	s := domain.NewSecret([]byte("super-secret-key-material"))

	for _, out := range []string{
		fmt.Sprint(s),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%+v", s),
		fmt.Sprintf("%#v", s),
		fmt.Sprintf("%s", s),
		fmt.Sprintf("%x", s),
	} {
		if strings.Contains(out, "super-secret") {
			t.Fatalf("secret leaked through formatting: %q", out)
		}
	}
}

func TestSecret_RefusesJSON(t *testing.T) {
	s := domain.NewSecret([]byte{1, 2, 3})
	if _, err := json.Marshal(s); err == nil {
		t.Fatal("expected marshal error")
	}
	if _, err := json.Marshal(domain.X25519Private{1}); err == nil {
		t.Fatal("expected marshal error for X25519Private")
	}
}

func TestSecret_WipeAndCopySemantics(t *testing.T) {
	src := []byte{9, 9, 9}
	s := domain.NewSecret(src)
	src[0] = 1 // caller's buffer is independent
	if s.Reveal()[0] != 9 {
		t.Fatal("NewSecret did not copy")
	}
	s.Wipe()
	if !s.IsZero() {
		t.Fatal("Wipe left material behind")
	}
}

func TestPrivateKeyTypes_Redacted(t *testing.T) {
	var k domain.X25519Private
	copy(k[:], []byte("0123456789abcdef0123456789abcdef"))
	if out := fmt.Sprintf("%v %s %#v", k, k, k); strings.Contains(out, "0123") {
		t.Fatalf("private key leaked: %q", out)
	}
}
