package pairwise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/protocol/ratchet"
	"keymesh/internal/protocol/x3dh"
	"keymesh/internal/util/memzero"
)

// ErrBadSignedPreKey is returned when a fetched bundle's signed pre-key
// signature does not verify under the bundle's signing key.
var ErrBadSignedPreKey = errors.New("signed pre-key signature does not verify")

// Manager runs the pairwise channels. All operations on the channel to one
// remote device are serialized; channels to different devices proceed
// independently.
type Manager struct {
	ids       domain.IdentityProvider
	prekeys   domain.PreKeyStore
	sessions  domain.PairwiseStore
	directory domain.BundleDirectory
	maxSkip   uint32

	mu    sync.Mutex
	locks map[domain.DeviceID]*sync.Mutex
}

// New returns a manager. maxSkip bounds how many message keys a single
// inbound gap may force the ratchet to derive.
func New(ids domain.IdentityProvider, prekeys domain.PreKeyStore, sessions domain.PairwiseStore, directory domain.BundleDirectory, maxSkip uint32) *Manager {
	return &Manager{
		ids:       ids,
		prekeys:   prekeys,
		sessions:  sessions,
		directory: directory,
		maxSkip:   maxSkip,
		locks:     make(map[domain.DeviceID]*sync.Mutex),
	}
}

func (m *Manager) lock(remote domain.DeviceID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[remote]
	if !ok {
		l = &sync.Mutex{}
		m.locks[remote] = l
	}
	return l
}

// EnsureSession returns the active session with remote, establishing one
// from the device's published bundle when none exists. The session is
// persisted in the establishing state before the first use and promoted to
// active once complete, so an interrupted exchange is recoverable.
func (m *Manager) EnsureSession(ctx context.Context, remote domain.DeviceID) (domain.PairwiseSession, error) {
	l := m.lock(remote)
	l.Lock()
	defer l.Unlock()
	return m.ensureLocked(ctx, remote)
}

func (m *Manager) ensureLocked(ctx context.Context, remote domain.DeviceID) (domain.PairwiseSession, error) {
	sess, ok, err := m.sessions.ActivePairwise(ctx, remote)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	if ok {
		return sess, nil
	}

	id, err := m.ids.Identity(ctx)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	bundle, err := m.directory.Bundle(ctx, remote)
	if err != nil {
		return domain.PairwiseSession{}, fmt.Errorf("resolve bundle for %s: %w", remote, err)
	}
	if !x3dh.VerifySignedPreKey(bundle.SigningKey, bundle.SignedPreKey, bundle.SignedPreKeySignature) {
		return domain.PairwiseSession{}, ErrBadSignedPreKey
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.PairwiseSession{}, err
	}

	var opkPub *domain.X25519Public
	var opkID domain.OneTimePreKeyID
	if len(bundle.OneTimePreKeys) > 0 {
		opk := bundle.OneTimePreKeys[0]
		opkPub = &opk.Pub
		opkID = opk.ID
	}

	root, err := x3dh.InitiatorRootKey(id.XPriv, ephPriv, bundle.IdentityKey, bundle.SignedPreKey, opkPub)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	st, err := ratchet.InitAsInitiator(root, bundle.IdentityKey)
	memzero.Zero(root)
	if err != nil {
		return domain.PairwiseSession{}, err
	}

	sess = domain.PairwiseSession{
		ID:           uuid.NewString(),
		LocalDevice:  id.DeviceID,
		RemoteDevice: remote,
		State:        domain.SessionEstablishing,
		Ratchet:      st,
		Establish: &domain.Establishment{
			InitiatorIdentityKey: id.XPub,
			EphemeralKey:         ephPub,
			SignedPreKeyID:       bundle.SignedPreKeyID,
			OneTimePreKeyID:      opkID,
		},
		CreatedUTC: time.Now().Unix(),
	}
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return domain.PairwiseSession{}, err
	}
	sess.State = domain.SessionActive
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return domain.PairwiseSession{}, err
	}
	return sess, nil
}

// EncryptTo seals plaintext for remote, establishing a session first when
// needed. The advanced ratchet state is persisted before the ciphertext is
// returned. Outbound messages carry the establishment parameters until the
// first inbound decrypt proves the peer has the session.
func (m *Manager) EncryptTo(ctx context.Context, remote domain.DeviceID, plaintext []byte) (domain.PairwiseMessage, error) {
	l := m.lock(remote)
	l.Lock()
	defer l.Unlock()

	sess, err := m.ensureLocked(ctx, remote)
	if err != nil {
		return domain.PairwiseMessage{}, err
	}
	header, ct, err := ratchet.Encrypt(&sess.Ratchet, channelAD(sess.LocalDevice, remote), plaintext)
	if err != nil {
		return domain.PairwiseMessage{}, err
	}
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return domain.PairwiseMessage{}, err
	}
	return domain.PairwiseMessage{
		From:       sess.LocalDevice,
		To:         remote,
		Header:     header,
		Ciphertext: ct,
		Establish:  sess.Establish,
	}, nil
}

// DecryptFrom opens an inbound message. A message carrying establishment
// parameters bootstraps the responder side of a new session when no active
// one exists. On success the advanced state is persisted; on failure the
// stored state is untouched. Superseded sessions are tried read-only when
// the active session cannot authenticate the message, so in-flight traffic
// survives a session replacement.
func (m *Manager) DecryptFrom(ctx context.Context, msg domain.PairwiseMessage) ([]byte, error) {
	l := m.lock(msg.From)
	l.Lock()
	defer l.Unlock()

	sess, ok, err := m.sessions.ActivePairwise(ctx, msg.From)
	if err != nil {
		return nil, err
	}
	if !ok {
		if msg.Establish == nil {
			return nil, domain.ErrNoSession
		}
		sess, err = m.respond(ctx, msg)
		if err != nil {
			return nil, err
		}
	}

	pt, err := ratchet.Decrypt(&sess.Ratchet, channelAD(msg.From, msg.To), msg.Header, msg.Ciphertext, m.maxSkip)
	if errors.Is(err, domain.ErrAuthenticationFailure) {
		if pt, ok := m.tryRetired(ctx, msg); ok {
			return pt, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	sess.Establish = nil
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return nil, err
	}
	return pt, nil
}

// respond bootstraps our side of a session the peer initiated.
func (m *Manager) respond(ctx context.Context, msg domain.PairwiseMessage) (domain.PairwiseSession, error) {
	id, err := m.ids.Identity(ctx)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	est := msg.Establish

	spkPriv, _, _, ok, err := m.prekeys.LoadSignedPreKey(ctx, est.SignedPreKeyID)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	if !ok {
		return domain.PairwiseSession{}, fmt.Errorf("signed pre-key %s not held: %w", est.SignedPreKeyID, domain.ErrNoSession)
	}

	var opkPriv *domain.X25519Private
	if est.OneTimePreKeyID != "" {
		priv, _, ok, err := m.prekeys.ConsumeOneTimePreKey(ctx, est.OneTimePreKeyID)
		if err != nil {
			return domain.PairwiseSession{}, err
		}
		if !ok {
			return domain.PairwiseSession{}, fmt.Errorf("one-time pre-key %s already consumed: %w", est.OneTimePreKeyID, domain.ErrNoSession)
		}
		opkPriv = &priv
	}

	root, err := x3dh.ResponderRootKey(id.XPriv, spkPriv, opkPriv, est.InitiatorIdentityKey, est.EphemeralKey)
	if err != nil {
		return domain.PairwiseSession{}, err
	}
	if len(msg.Header.DHPub) != 32 {
		memzero.Zero(root)
		return domain.PairwiseSession{}, domain.ErrAuthenticationFailure
	}
	var senderPub domain.X25519Public
	copy(senderPub[:], msg.Header.DHPub)

	st, err := ratchet.InitAsResponder(root, id.XPriv, senderPub)
	memzero.Zero(root)
	if err != nil {
		return domain.PairwiseSession{}, err
	}

	sess := domain.PairwiseSession{
		ID:           uuid.NewString(),
		LocalDevice:  id.DeviceID,
		RemoteDevice: msg.From,
		State:        domain.SessionEstablishing,
		Ratchet:      st,
		CreatedUTC:   time.Now().Unix(),
	}
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return domain.PairwiseSession{}, err
	}
	sess.State = domain.SessionActive
	if err := m.sessions.SavePairwise(ctx, sess); err != nil {
		return domain.PairwiseSession{}, err
	}
	return sess, nil
}

// tryRetired attempts the message against retired sessions for the sender.
// Retired sessions are read-only: the receive floor is not advanced, so
// they only cover in-flight traffic, not long-term channels.
func (m *Manager) tryRetired(ctx context.Context, msg domain.PairwiseMessage) ([]byte, bool) {
	all, err := m.sessions.ListPairwise(ctx)
	if err != nil {
		return nil, false
	}
	for _, sess := range all {
		if sess.RemoteDevice != msg.From || sess.State != domain.SessionRetired {
			continue
		}
		st := sess.Ratchet
		if pt, err := ratchet.Decrypt(&st, channelAD(msg.From, msg.To), msg.Header, msg.Ciphertext, m.maxSkip); err == nil {
			return pt, true
		}
	}
	return nil, false
}

// channelAD binds a ciphertext to the (sender, recipient) pair.
func channelAD(from, to domain.DeviceID) []byte {
	out := make([]byte, 0, len(from)+len(to)+1)
	out = append(out, from...)
	out = append(out, 0)
	return append(out, to...)
}

var _ domain.PairwiseChannel = (*Manager)(nil)
