package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"keymesh/internal/domain"
)

const identityFile = "identity.enc"

// IdentityFileStore keeps the device identity in a passphrase-encrypted
// file under the keymesh home directory.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns a store rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir}
}

// persistedIdentity is the plaintext layout inside the envelope. Private
// keys are unwrapped explicitly here; this file is the audited boundary.
type persistedIdentity struct {
	DeviceID   string `json:"device_id"`
	XPub       []byte `json:"xpub"`
	XPriv      []byte `json:"xpriv"`
	EdPub      []byte `json:"edpub"`
	EdPriv     []byte `json:"edpriv"`
	CreatedUTC int64  `json:"created_utc"`
}

// SaveIdentity encrypts and writes the identity.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(persistedIdentity{
		DeviceID:   string(id.DeviceID),
		XPub:       id.XPub.Slice(),
		XPriv:      id.XPriv.Slice(),
		EdPub:      id.EdPub.Slice(),
		EdPriv:     id.EdPriv.Slice(),
		CreatedUTC: id.CreatedUTC,
	})
	if err != nil {
		return err
	}
	blob, err := sealEnvelope(passphrase, raw)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, identityFile), blob, 0o600)
}

// LoadIdentity reads and decrypts the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := os.ReadFile(filepath.Join(s.dir, identityFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DeviceIdentity{}, domain.ErrNoIdentity
		}
		return domain.DeviceIdentity{}, err
	}
	raw, err := openEnvelope(passphrase, blob)
	if err != nil {
		return domain.DeviceIdentity{}, err
	}
	var p persistedIdentity
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.DeviceIdentity{}, err
	}

	id := domain.DeviceIdentity{
		DeviceID:   domain.DeviceID(p.DeviceID),
		CreatedUTC: p.CreatedUTC,
	}
	copy(id.XPub[:], p.XPub)
	copy(id.XPriv[:], p.XPriv)
	copy(id.EdPub[:], p.EdPub)
	copy(id.EdPriv[:], p.EdPriv)
	return id, nil
}

// HasIdentity reports whether an identity file exists.
func (s *IdentityFileStore) HasIdentity() (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, identityFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

var _ domain.IdentityStore = (*IdentityFileStore)(nil)
