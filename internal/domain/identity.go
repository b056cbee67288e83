package domain

// DeviceIdentity is the long-term key material of one device. The private
// halves never leave the device unencrypted.
type DeviceIdentity struct {
	DeviceID DeviceID
	XPub     X25519Public
	XPriv    X25519Private
	EdPub    Ed25519Public
	EdPriv   Ed25519Private

	CreatedUTC int64
}

// OneTimePreKeyPair is a full one-time pre-key kept locally until a peer
// consumes it during session establishment.
type OneTimePreKeyPair struct {
	ID   OneTimePreKeyID
	Priv X25519Private
	Pub  X25519Public
}

// OneTimePreKeyPublic is the public half published in bundles.
type OneTimePreKeyPublic struct {
	ID  OneTimePreKeyID `json:"id"`
	Pub X25519Public    `json:"pub"`
}

// PeerKeyBundle is the public key material one device publishes so that
// others can establish a pairwise session with it. The host's directory
// serves these; keymesh only defines the shape and verifies the signature.
type PeerKeyBundle struct {
	DeviceID              DeviceID              `json:"device_id"`
	IdentityKey           X25519Public          `json:"identity_key"`
	SigningKey            Ed25519Public         `json:"signing_key"`
	SignedPreKeyID        SignedPreKeyID        `json:"signed_pre_key_id"`
	SignedPreKey          X25519Public          `json:"signed_pre_key"`
	SignedPreKeySignature []byte                `json:"signed_pre_key_signature"`
	OneTimePreKeys        []OneTimePreKeyPublic `json:"one_time_pre_keys,omitempty"`
}
