package app

import "path/filepath"

// Config carries the policy knobs. Defaults are safe; hosts tune them, the
// services never read configuration themselves.
type Config struct {
	// Home is the directory holding the identity file and the database.
	Home string
	// DBPath is the SQLite database location.
	DBPath string
	// Passphrase unlocks the identity file.
	Passphrase string

	// RotationMessageCount is how many messages an outbound group session
	// encrypts before it is replaced.
	RotationMessageCount uint32
	// MaxSkippedMessageKeys bounds the message keys one pairwise gap may
	// force the ratchet to derive and store.
	MaxSkippedMessageKeys uint32
	// MaxChainAdvance bounds how far forward an inbound group chain is
	// walked for a single message.
	MaxChainAdvance uint32
	// KDFIterations is the backup key stretching cost. Values below the
	// enforced floor are raised to it.
	KDFIterations int
	// OneTimePreKeyBatch is how many one-time pre-keys a replenish creates.
	OneTimePreKeyBatch int
	// ClaimRetryAttempts bounds retries of a contended share claim.
	ClaimRetryAttempts int
}

// DefaultConfig returns the default policy rooted at home.
func DefaultConfig(home string) Config {
	return Config{
		Home:                  home,
		DBPath:                filepath.Join(home, "keymesh.db"),
		RotationMessageCount:  100,
		MaxSkippedMessageKeys: 1000,
		MaxChainAdvance:       1 << 16,
		KDFIterations:         210_000,
		OneTimePreKeyBatch:    32,
		ClaimRetryAttempts:    3,
	}
}
