// Package senderkey implements the symmetric chain behind group sessions.
//
// One sender owns a chain key per conversation; every message advances it
// by one HKDF step and encrypts under the derived message key. Recipients
// hold a copy of the chain key pinned at some base index and derive the key
// for any later index forward on demand, so out-of-order delivery needs no
// stored skipped keys. A copy shared at index n can never decrypt indexes
// below n.
package senderkey
