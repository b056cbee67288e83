// Package x3dh derives the shared root key that seeds a pairwise ratchet.
//
// The initiator combines its identity key and a fresh ephemeral key with
// the responder's identity key, signed pre-key and (when available) a
// one-time pre-key. The responder mirrors the computation from the other
// side. Both arrive at the same root key without any online exchange beyond
// the initiator's first message.
package x3dh
