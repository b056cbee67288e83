package domain

// AlgorithmSenderKeyV1 tags envelopes produced by the current group cipher.
const AlgorithmSenderKeyV1 = "chacha20poly1305/senderkey-v1"

// MessageEnvelope is what the host stores and transmits verbatim. The
// embedded session id and chain index let any recipient holding the
// matching inbound session decrypt without a handshake.
type MessageEnvelope struct {
	ConversationID ConversationID `json:"conversation_id"`
	SessionID      SessionID      `json:"session_id"`
	ChainIndex     uint32         `json:"chain_index"`
	Algorithm      string         `json:"algorithm"`
	Nonce          []byte         `json:"nonce"`
	Ciphertext     []byte         `json:"ciphertext"`
}
