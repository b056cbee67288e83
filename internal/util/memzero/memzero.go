// Package memzero provides best-effort wiping of sensitive byte slices.
package memzero

import "runtime"

// Zero overwrites b with zeroes. Best-effort: the write is kept live so the
// compiler does not elide it, but copies made elsewhere are out of reach.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(&b)
}

// ZeroAll wipes every slice in order.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		Zero(b)
	}
}
