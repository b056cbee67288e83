package domain

import "errors"

// Sentinel errors for errors.Is checks. Policy rejections (replay, chain
// floor, unknown session) are distinct from corruption so callers can react
// without treating them as fatal.
var (
	// ErrAuthenticationFailure is returned when an AEAD tag does not verify
	// or a ciphertext is truncated. No partial plaintext is ever returned.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrReplayRejected is returned when a pairwise message's ratchet index
	// is behind the session's receive floor and no skipped key remains.
	ErrReplayRejected = errors.New("message replayed or too old")

	// ErrRatchetGapExceeded is returned when bridging to a message's index
	// would require deriving more skipped keys than the configured bound.
	ErrRatchetGapExceeded = errors.New("ratchet gap exceeds configured maximum")

	// ErrChainTooOld is returned when a group ciphertext's chain index
	// predates the earliest index this device's copy of the key unlocks.
	ErrChainTooOld = errors.New("chain index predates held key material")

	// ErrUnknownSession is returned when no inbound group session matches a
	// ciphertext. The caller should claim pending shares and retry.
	ErrUnknownSession = errors.New("unknown group session")

	// ErrWrongPassword is returned for any backup decryption failure. Wrong
	// password and corrupted blob are intentionally indistinguishable.
	ErrWrongPassword = errors.New("wrong password or corrupted backup")

	// ErrStoreBusy is returned after bounded retries against a contended
	// store give up.
	ErrStoreBusy = errors.New("store busy after retries")

	// ErrNoIdentity is returned when the device identity has not been
	// generated yet.
	ErrNoIdentity = errors.New("device identity not initialised")

	// ErrUnknownDevice is returned when no key bundle can be resolved for a
	// remote device.
	ErrUnknownDevice = errors.New("no key bundle for device")

	// ErrNoSession is returned when a pairwise operation needs an
	// established session and none exists.
	ErrNoSession = errors.New("no pairwise session with device")
)
