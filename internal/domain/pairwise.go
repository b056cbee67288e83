package domain

// SessionState tracks the lifecycle of a pairwise session. Establishment is
// an explicit state so an interrupted key exchange is recoverable rather
// than undefined.
type SessionState string

const (
	// SessionEstablishing marks a session persisted before its first use.
	SessionEstablishing SessionState = "establishing"
	// SessionActive marks the single live session for a remote device.
	SessionActive SessionState = "active"
	// SessionRetired marks a superseded session kept read-only so in-flight
	// messages remain decryptable.
	SessionRetired SessionState = "retired"
)

// RatchetHeader travels with every pairwise ciphertext.
type RatchetHeader struct {
	DHPub []byte `json:"dh_pub"`
	PN    uint32 `json:"pn"`
	N     uint32 `json:"n"`
}

// RatchetState is everything the Double Ratchet tracks for one pairwise
// channel. It contains private key material and therefore does not marshal;
// the store converts it explicitly.
type RatchetState struct {
	RootKey   []byte
	DHPriv    X25519Private
	DHPub     X25519Public
	PeerDHPub X25519Public
	SendCK    []byte
	RecvCK    []byte
	Ns        uint32
	Nr        uint32
	PN        uint32
	Skipped   map[string][]byte
}

// Establishment carries the key-agreement parameters a responder needs to
// bootstrap its side of a new pairwise session. It rides along on outbound
// messages until the initiator has decrypted a reply.
type Establishment struct {
	InitiatorIdentityKey X25519Public    `json:"initiator_identity_key"`
	EphemeralKey         X25519Public    `json:"ephemeral_key"`
	SignedPreKeyID       SignedPreKeyID  `json:"signed_pre_key_id"`
	OneTimePreKeyID      OneTimePreKeyID `json:"one_time_pre_key_id,omitempty"`
}

// PairwiseSession is the ratcheting channel between the local device and
// exactly one remote device.
type PairwiseSession struct {
	ID           string
	LocalDevice  DeviceID
	RemoteDevice DeviceID
	State        SessionState
	Ratchet      RatchetState

	// Establish is non-nil while this side still owes the peer the
	// key-agreement parameters; cleared after the first inbound decrypt.
	Establish *Establishment

	CreatedUTC int64
	UpdatedUTC int64
}

// PairwiseMessage is one ciphertext on a pairwise channel.
type PairwiseMessage struct {
	From       DeviceID       `json:"from"`
	To         DeviceID       `json:"to"`
	Header     RatchetHeader  `json:"header"`
	Ciphertext []byte         `json:"ciphertext"`
	Establish  *Establishment `json:"establish,omitempty"`
}
