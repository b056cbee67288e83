package domain

// GroupRole distinguishes the session a device encrypts with from the
// copies it holds to decrypt other senders.
type GroupRole string

const (
	// RoleOutbound is the one session per (device, conversation) used to
	// encrypt.
	RoleOutbound GroupRole = "outbound"
	// RoleInbound is a copy held to decrypt one specific sender's session.
	RoleInbound GroupRole = "inbound"
)

// GroupSession is a sender-key session for one conversation.
//
// For an outbound session ChainKey is the key at NextIndex and advances on
// every encrypt. For an inbound session ChainKey stays pinned at BaseIndex;
// message keys for any later index are derived forward from it on demand,
// so out-of-order delivery needs no skipped-key storage. BaseIndex is the
// earliest index this copy of the key unlocks and never decreases.
type GroupSession struct {
	SessionID      SessionID
	ConversationID ConversationID
	SenderDevice   DeviceID
	Role           GroupRole

	ChainKey  Secret
	BaseIndex uint32
	NextIndex uint32

	MessagesSent     uint32
	MessagesReceived uint32
	CreatedUTC       int64
}

// SenderKeyExport is the key material delivered to each recipient when a
// session is fanned out. It is only ever serialized as the plaintext of a
// pairwise-encrypted share.
type SenderKeyExport struct {
	SessionID      SessionID      `json:"session_id"`
	ConversationID ConversationID `json:"conversation_id"`
	SenderDevice   DeviceID       `json:"sender_device"`
	ChainKey       []byte         `json:"chain_key"`
	BaseIndex      uint32         `json:"base_index"`
}
