package domain

// SessionShare is one pending key delivery: sender S created group session
// G and is handing its key material to recipient R, encrypted under the S-R
// pairwise channel. Each recipient's share is independently encrypted.
//
// A share transitions from pending to claimed exactly once and is never
// mutated afterwards except for the claim timestamp.
type SessionShare struct {
	ID              ShareID
	SessionID       SessionID
	ConversationID  ConversationID
	SenderDevice    DeviceID
	RecipientDevice DeviceID

	// Ciphertext is a JSON PairwiseMessage wrapping a SenderKeyExport.
	Ciphertext []byte

	CreatedUTC int64
	Claimed    bool
	ClaimedUTC int64
}

// ShareOutcome reports the result of fan-out for one recipient. Failures
// are isolated per recipient so the caller can retry selectively.
type ShareOutcome struct {
	Recipient DeviceID
	ShareID   ShareID
	Created   bool
	Err       error
}
