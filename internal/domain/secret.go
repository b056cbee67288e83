package domain

import "fmt"

// Secret wraps variable-length symmetric key material. Like the private key
// types it refuses default formatting and JSON marshalling; Reveal is the
// single unwrap point and callers are expected to Wipe after use.
type Secret struct {
	b []byte
}

// NewSecret copies b into a Secret. The caller keeps ownership of b.
func NewSecret(b []byte) Secret {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Secret{b: cp}
}

// Reveal returns the wrapped bytes. The returned slice aliases the secret;
// do not retain it beyond the immediate operation.
func (s Secret) Reveal() []byte { return s.b }

// Len reports the key length without exposing the bytes.
func (s Secret) Len() int { return len(s.b) }

// IsZero reports whether the secret is empty.
func (s Secret) IsZero() bool { return len(s.b) == 0 }

// Wipe zeroes the wrapped bytes in place.
func (s *Secret) Wipe() {
	for i := range s.b {
		s.b[i] = 0
	}
	s.b = nil
}

// String hides the secret from formatters.
func (s Secret) String() string { return redacted }

// GoString hides the secret from %#v.
func (s Secret) GoString() string { return redacted }

// Format hides the secret from all fmt verbs.
func (s Secret) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(redacted)) }

// MarshalJSON refuses to serialize the secret.
func (s Secret) MarshalJSON() ([]byte, error) { return nil, ErrKeyNotSerializable }
