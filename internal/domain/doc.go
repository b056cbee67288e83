// Package domain defines the records, identifiers and interfaces shared by
// every layer of keymesh.
//
// Contents
//
//   - Key types with fixed sizes (X25519Public, Ed25519Private, ...).
//     Private key types and Secret refuse default formatting and JSON
//     marshalling; persistence layers unwrap them explicitly.
//   - Records: DeviceIdentity, PairwiseSession, GroupSession, SessionShare,
//     MessageEnvelope, BackupBlob.
//   - Store and collaborator interfaces implemented by internal/store and
//     by the host application.
//   - The sentinel error taxonomy surfaced by the services.
package domain
