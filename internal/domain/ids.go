package domain

// DeviceID identifies one physical device, local or remote.
type DeviceID string

// String returns the string form of the device identifier.
func (d DeviceID) String() string { return string(d) }

// ConversationID identifies a conversation shared by a set of devices.
type ConversationID string

// String returns the string form of the conversation identifier.
func (c ConversationID) String() string { return string(c) }

// SessionID identifies one group session (outbound on the creator,
// inbound everywhere else).
type SessionID string

// String returns the string form of the session identifier.
func (s SessionID) String() string { return string(s) }

// ShareID identifies one SessionShare row.
type ShareID string

// String returns the string form of the share identifier.
func (s ShareID) String() string { return string(s) }

// SignedPreKeyID identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }
