package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
)

// ErrIdentityExists is returned when Generate is called on a device that
// already has an identity.
var ErrIdentityExists = errors.New("device identity already exists")

// Service creates and unlocks the device identity and keeps the pre-key
// inventory stocked.
type Service struct {
	ids      domain.IdentityStore
	prekeys  domain.PreKeyStore
	opkBatch int
}

// New returns an identity service. opkBatch is how many one-time pre-keys
// Replenish creates per call.
func New(ids domain.IdentityStore, prekeys domain.PreKeyStore, opkBatch int) *Service {
	if opkBatch <= 0 {
		opkBatch = 32
	}
	return &Service{ids: ids, prekeys: prekeys, opkBatch: opkBatch}
}

// Generate creates the device identity, encrypts it under passphrase and
// stocks an initial signed pre-key plus a batch of one-time pre-keys.
// Exactly one identity exists per device.
func (s *Service) Generate(ctx context.Context, passphrase string) (domain.DeviceIdentity, error) {
	ok, err := s.ids.HasIdentity()
	if err != nil {
		return domain.DeviceIdentity{}, err
	}
	if ok {
		return domain.DeviceIdentity{}, ErrIdentityExists
	}

	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.DeviceIdentity{}, err
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.DeviceIdentity{}, err
	}

	id := domain.DeviceIdentity{
		DeviceID:   domain.DeviceID(uuid.NewString()),
		XPub:       xPub,
		XPriv:      xPriv,
		EdPub:      edPub,
		EdPriv:     edPriv,
		CreatedUTC: time.Now().Unix(),
	}
	if err := s.ids.SaveIdentity(passphrase, id); err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("save identity: %w", err)
	}
	if _, err := s.rotateSignedPreKey(ctx, id); err != nil {
		return domain.DeviceIdentity{}, err
	}
	if err := s.Replenish(ctx); err != nil {
		return domain.DeviceIdentity{}, err
	}
	return id, nil
}

// Load decrypts and returns the stored identity.
func (s *Service) Load(passphrase string) (domain.DeviceIdentity, error) {
	return s.ids.LoadIdentity(passphrase)
}

// Fingerprint returns the short fingerprint of this device's identity key.
func (s *Service) Fingerprint(passphrase string) (string, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.XPub.Slice()), nil
}

// RotateSignedPreKey replaces the current signed pre-key. The old one stays
// loadable so establishment messages referencing it keep working.
func (s *Service) RotateSignedPreKey(ctx context.Context, passphrase string) (domain.SignedPreKeyID, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return s.rotateSignedPreKey(ctx, id)
}

func (s *Service) rotateSignedPreKey(ctx context.Context, id domain.DeviceIdentity) (domain.SignedPreKeyID, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return "", err
	}
	spkID := domain.SignedPreKeyID("spk-" + uuid.NewString())
	sig := crypto.SignEd25519(id.EdPriv, pub.Slice())
	if err := s.prekeys.SaveSignedPreKey(ctx, spkID, priv, pub, sig); err != nil {
		return "", fmt.Errorf("save signed pre-key: %w", err)
	}
	if err := s.prekeys.SetCurrentSignedPreKeyID(ctx, spkID); err != nil {
		return "", err
	}
	return spkID, nil
}

// Replenish stocks a fresh batch of one-time pre-keys.
func (s *Service) Replenish(ctx context.Context) error {
	pairs := make([]domain.OneTimePreKeyPair, 0, s.opkBatch)
	for i := 0; i < s.opkBatch; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return err
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID("opk-" + uuid.NewString()),
			Priv: priv,
			Pub:  pub,
		})
	}
	return s.prekeys.SaveOneTimePreKeys(ctx, pairs)
}

// Bundle assembles the publishable key bundle for this device: identity and
// signing keys, the current signed pre-key with its signature, and the
// unconsumed one-time pre-key publics.
func (s *Service) Bundle(ctx context.Context, passphrase string) (domain.PeerKeyBundle, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.PeerKeyBundle{}, err
	}
	spkID, ok, err := s.prekeys.CurrentSignedPreKeyID(ctx)
	if err != nil {
		return domain.PeerKeyBundle{}, err
	}
	if !ok {
		return domain.PeerKeyBundle{}, errors.New("no current signed pre-key")
	}
	_, spkPub, sig, ok, err := s.prekeys.LoadSignedPreKey(ctx, spkID)
	if err != nil {
		return domain.PeerKeyBundle{}, err
	}
	if !ok {
		return domain.PeerKeyBundle{}, fmt.Errorf("current signed pre-key %s missing", spkID)
	}
	opks, err := s.prekeys.ListOneTimePreKeyPublics(ctx)
	if err != nil {
		return domain.PeerKeyBundle{}, err
	}
	return domain.PeerKeyBundle{
		DeviceID:              id.DeviceID,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: sig,
		OneTimePreKeys:        opks,
	}, nil
}
