// Package ratchet implements the Double Ratchet used by pairwise sessions.
//
// Every message advances a chain key; a new remote ratchet public key
// triggers a DH step that replaces both chains. Out-of-order delivery is
// bridged by deriving and storing the skipped message keys, bounded by a
// caller-supplied maximum so a malicious sender cannot force unbounded
// work. A message whose index is behind the receive floor and has no stored
// skipped key is a replay and is rejected.
//
// Decrypt mutates nothing unless the ciphertext authenticates: all state
// transitions happen on a scratch copy that is committed only on success.
package ratchet
