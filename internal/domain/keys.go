package domain

import (
	"errors"
	"fmt"
)

// ErrKeyNotSerializable is returned when private key material is handed to a
// formatter or serializer without going through an explicit unwrap.
var ErrKeyNotSerializable = errors.New("private key material is not serializable; unwrap explicitly")

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key. It cannot be printed or JSON
// marshalled; persistence code unwraps it with Slice.
type X25519Private [32]byte

// Slice returns the key bytes. This is the audited unwrap point.
func (k X25519Private) Slice() []byte { return k[:] }

// String hides the key from formatters.
func (k X25519Private) String() string { return redacted }

// GoString hides the key from %#v.
func (k X25519Private) GoString() string { return redacted }

// Format hides the key from all fmt verbs.
func (k X25519Private) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(redacted)) }

// MarshalJSON refuses to serialize the key.
func (k X25519Private) MarshalJSON() ([]byte, error) { return nil, ErrKeyNotSerializable }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key, guarded the same way as
// X25519Private.
type Ed25519Private [64]byte

// Slice returns the key bytes. This is the audited unwrap point.
func (k Ed25519Private) Slice() []byte { return k[:] }

// String hides the key from formatters.
func (k Ed25519Private) String() string { return redacted }

// GoString hides the key from %#v.
func (k Ed25519Private) GoString() string { return redacted }

// Format hides the key from all fmt verbs.
func (k Ed25519Private) Format(f fmt.State, _ rune) { _, _ = f.Write([]byte(redacted)) }

// MarshalJSON refuses to serialize the key.
func (k Ed25519Private) MarshalJSON() ([]byte, error) { return nil, ErrKeyNotSerializable }

const redacted = "[redacted]"
