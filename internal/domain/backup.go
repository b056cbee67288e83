package domain

// BackupBlob is an opaque, password-encrypted snapshot of a device's full
// cryptographic state plus everything needed to re-derive the key. A later
// backup supersedes an earlier one; blobs are never merged.
type BackupBlob struct {
	Version    int    `json:"v"`
	KDF        string `json:"kdf"`
	Salt       []byte `json:"salt"`
	Iterations int    `json:"iterations"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"cipher"`
}

// DeviceState is the material a backup captures: identity plus all pairwise
// and group sessions. Decrypting a blob yields a DeviceState; nothing live
// mutates until it is explicitly installed.
type DeviceState struct {
	Identity DeviceIdentity
	Pairwise []PairwiseSession
	Groups   []GroupSession
}
