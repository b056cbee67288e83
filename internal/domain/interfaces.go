package domain

import "context"

// IdentityStore persists the long-term device identity, encrypted under the
// user's passphrase.
type IdentityStore interface {
	SaveIdentity(passphrase string, id DeviceIdentity) error
	LoadIdentity(passphrase string) (DeviceIdentity, error)
	HasIdentity() (bool, error)
}

// PreKeyStore manages the signed and one-time pre-keys this device keeps so
// that peers can establish pairwise sessions with it.
type PreKeyStore interface {
	SaveSignedPreKey(ctx context.Context, id SignedPreKeyID, priv X25519Private, pub X25519Public, sig []byte) error
	LoadSignedPreKey(ctx context.Context, id SignedPreKeyID) (priv X25519Private, pub X25519Public, sig []byte, ok bool, err error)
	SetCurrentSignedPreKeyID(ctx context.Context, id SignedPreKeyID) error
	CurrentSignedPreKeyID(ctx context.Context) (SignedPreKeyID, bool, error)

	SaveOneTimePreKeys(ctx context.Context, pairs []OneTimePreKeyPair) error
	ConsumeOneTimePreKey(ctx context.Context, id OneTimePreKeyID) (priv X25519Private, pub X25519Public, ok bool, err error)
	ListOneTimePreKeyPublics(ctx context.Context) ([]OneTimePreKeyPublic, error)
}

// PairwiseStore persists pairwise sessions. A session must be durably
// recorded before it is treated as live.
type PairwiseStore interface {
	SavePairwise(ctx context.Context, s PairwiseSession) error
	ActivePairwise(ctx context.Context, remote DeviceID) (PairwiseSession, bool, error)
	SetPairwiseState(ctx context.Context, id string, state SessionState) error
	ListPairwise(ctx context.Context) ([]PairwiseSession, error)
}

// GroupStore persists group sessions. Saving an outbound session replaces
// the conversation's outbound pointer; earlier sessions stay readable as
// inbound copies.
type GroupStore interface {
	SaveGroup(ctx context.Context, s GroupSession) error
	OutboundGroup(ctx context.Context, conv ConversationID) (GroupSession, bool, error)
	InboundGroup(ctx context.Context, id SessionID, sender DeviceID) (GroupSession, bool, error)
	ListGroups(ctx context.Context) ([]GroupSession, error)
}

// ShareStore persists session shares. InsertShare reports false when a
// share for (session, recipient) already exists, which is what makes
// fan-out idempotent. ClaimPending atomically selects and marks all
// unclaimed shares for a device; under concurrent claims each share is
// returned to exactly one caller.
type ShareStore interface {
	InsertShare(ctx context.Context, s SessionShare) (created bool, err error)
	HasShare(ctx context.Context, session SessionID, recipient DeviceID) (bool, error)
	ClaimPending(ctx context.Context, device DeviceID) ([]SessionShare, error)
}

// BundleDirectory resolves the published key bundle of a remote device. The
// host application implements it on top of whatever directory it runs.
type BundleDirectory interface {
	Bundle(ctx context.Context, device DeviceID) (PeerKeyBundle, error)
}

// Roster reports the devices participating in a conversation. Membership
// management itself is the host's concern.
type Roster interface {
	Participants(ctx context.Context, conv ConversationID) ([]DeviceID, error)
}

// IdentityProvider hands services the unlocked device identity.
type IdentityProvider interface {
	Identity(ctx context.Context) (DeviceIdentity, error)
}

// PairwiseChannel is the confidential per-device channel the fan-out layer
// uses to wrap group key material.
type PairwiseChannel interface {
	EnsureSession(ctx context.Context, remote DeviceID) (PairwiseSession, error)
	EncryptTo(ctx context.Context, remote DeviceID, plaintext []byte) (PairwiseMessage, error)
	DecryptFrom(ctx context.Context, msg PairwiseMessage) ([]byte, error)
}

// InboundImporter installs claimed key material as an inbound group
// session.
type InboundImporter interface {
	ImportInbound(ctx context.Context, export SenderKeyExport) error
}
