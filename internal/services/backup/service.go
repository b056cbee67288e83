package backup

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"keymesh/internal/crypto"
	"keymesh/internal/domain"
	"keymesh/internal/util/memzero"
)

const blobVersion = 1

// Service creates and restores backups. The backup password is independent
// of the passphrase guarding the local identity file.
type Service struct {
	ids        domain.IdentityStore
	pairwise   domain.PairwiseStore
	groups     domain.GroupStore
	iterations int
}

// New returns a backup service. iterations below the enforced KDF floor are
// raised to it.
func New(ids domain.IdentityStore, pairwise domain.PairwiseStore, groups domain.GroupStore, iterations int) *Service {
	if iterations < crypto.MinKDFIterations {
		iterations = crypto.MinKDFIterations
	}
	return &Service{ids: ids, pairwise: pairwise, groups: groups, iterations: iterations}
}

// Create snapshots the identity plus every pairwise and group session into
// one blob. passphrase unlocks the local identity; password encrypts the
// blob.
func (s *Service) Create(ctx context.Context, passphrase, password string) (domain.BackupBlob, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return domain.BackupBlob{}, err
	}
	sessions, err := s.pairwise.ListPairwise(ctx)
	if err != nil {
		return domain.BackupBlob{}, err
	}
	groups, err := s.groups.ListGroups(ctx)
	if err != nil {
		return domain.BackupBlob{}, err
	}

	raw, err := json.Marshal(pack(domain.DeviceState{Identity: id, Pairwise: sessions, Groups: groups}))
	if err != nil {
		return domain.BackupBlob{}, err
	}
	defer memzero.Zero(raw)

	salt, err := crypto.RandomSalt()
	if err != nil {
		return domain.BackupBlob{}, err
	}
	key := crypto.DeriveKey(password, salt, s.iterations)
	defer key.Wipe()

	nonce, ct, err := crypto.Seal(key, raw, blobAAD(blobVersion, crypto.KDFName, s.iterations, salt))
	if err != nil {
		return domain.BackupBlob{}, err
	}
	return domain.BackupBlob{
		Version:    blobVersion,
		KDF:        crypto.KDFName,
		Salt:       salt,
		Iterations: s.iterations,
		Nonce:      nonce,
		Ciphertext: ct,
	}, nil
}

// Restore decrypts a blob. Wrong password and corrupted blob are
// indistinguishable: both yield domain.ErrWrongPassword. Nothing live is
// touched; the caller installs the returned state explicitly.
func (s *Service) Restore(blob domain.BackupBlob, password string) (domain.DeviceState, error) {
	if blob.Version != blobVersion {
		return domain.DeviceState{}, fmt.Errorf("unsupported backup version %d", blob.Version)
	}
	key := crypto.DeriveKey(password, blob.Salt, blob.Iterations)
	defer key.Wipe()

	// The KDF parameters are bound as associated data, so downgrading the
	// stored iteration count breaks authentication.
	raw, err := crypto.Open(key, blob.Nonce, blob.Ciphertext, blobAAD(blob.Version, blob.KDF, blob.Iterations, blob.Salt))
	if err != nil {
		return domain.DeviceState{}, domain.ErrWrongPassword
	}
	defer memzero.Zero(raw)

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.DeviceState{}, domain.ErrWrongPassword
	}
	return unpack(p)
}

// VerifyPassword checks a password against a blob without installing
// anything.
func (s *Service) VerifyPassword(blob domain.BackupBlob, password string) error {
	_, err := s.Restore(blob, password)
	return err
}

// Install writes a restored state into the live stores, encrypting the
// identity under passphrase. Retired sessions go first so the active ones
// keep the one-active-per-remote invariant.
func (s *Service) Install(ctx context.Context, passphrase string, state domain.DeviceState) error {
	if err := s.ids.SaveIdentity(passphrase, state.Identity); err != nil {
		return err
	}
	for _, sess := range state.Pairwise {
		if sess.State == domain.SessionActive {
			continue
		}
		if err := s.pairwise.SavePairwise(ctx, sess); err != nil {
			return err
		}
	}
	for _, sess := range state.Pairwise {
		if sess.State != domain.SessionActive {
			continue
		}
		if err := s.pairwise.SavePairwise(ctx, sess); err != nil {
			return err
		}
	}
	for _, g := range state.Groups {
		if err := s.groups.SaveGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func blobAAD(version int, kdf string, iterations int, salt []byte) []byte {
	out := make([]byte, 0, 16+len(kdf)+len(salt))
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(version))
	out = append(out, b[:]...)
	out = append(out, kdf...)
	binary.BigEndian.PutUint32(b[:], uint32(iterations))
	out = append(out, b[:]...)
	return append(out, salt...)
}

// --- payload ---

// The payload mirrors the domain types with plain bytes; the key wrappers
// refuse JSON. The backup wire format is versioned independently of the
// store's row format.

type payloadIdentity struct {
	DeviceID   string `json:"device_id"`
	XPub       []byte `json:"x_pub"`
	XPriv      []byte `json:"x_priv"`
	EdPub      []byte `json:"ed_pub"`
	EdPriv     []byte `json:"ed_priv"`
	CreatedUTC int64  `json:"created_utc"`
}

type payloadRatchet struct {
	RootKey   []byte            `json:"root_key"`
	DHPriv    []byte            `json:"dh_priv"`
	DHPub     []byte            `json:"dh_pub"`
	PeerDHPub []byte            `json:"peer_dh_pub"`
	SendCK    []byte            `json:"send_ck,omitempty"`
	RecvCK    []byte            `json:"recv_ck,omitempty"`
	Ns        uint32            `json:"ns"`
	Nr        uint32            `json:"nr"`
	PN        uint32            `json:"pn"`
	Skipped   map[string][]byte `json:"skipped,omitempty"`
}

type payloadPairwise struct {
	ID           string                `json:"id"`
	LocalDevice  string                `json:"local_device"`
	RemoteDevice string                `json:"remote_device"`
	State        string                `json:"state"`
	Ratchet      payloadRatchet        `json:"ratchet"`
	Establish    *domain.Establishment `json:"establish,omitempty"`
	CreatedUTC   int64                 `json:"created_utc"`
	UpdatedUTC   int64                 `json:"updated_utc"`
}

type payloadGroup struct {
	SessionID        string `json:"session_id"`
	ConversationID   string `json:"conversation_id"`
	SenderDevice     string `json:"sender_device"`
	Role             string `json:"role"`
	ChainKey         []byte `json:"chain_key"`
	BaseIndex        uint32 `json:"base_index"`
	NextIndex        uint32 `json:"next_index"`
	MessagesSent     uint32 `json:"messages_sent"`
	MessagesReceived uint32 `json:"messages_received"`
	CreatedUTC       int64  `json:"created_utc"`
}

type payload struct {
	Identity payloadIdentity   `json:"identity"`
	Pairwise []payloadPairwise `json:"pairwise,omitempty"`
	Groups   []payloadGroup    `json:"groups,omitempty"`
}

func pack(state domain.DeviceState) payload {
	p := payload{
		Identity: payloadIdentity{
			DeviceID:   string(state.Identity.DeviceID),
			XPub:       state.Identity.XPub.Slice(),
			XPriv:      state.Identity.XPriv.Slice(),
			EdPub:      state.Identity.EdPub.Slice(),
			EdPriv:     state.Identity.EdPriv.Slice(),
			CreatedUTC: state.Identity.CreatedUTC,
		},
	}
	for _, sess := range state.Pairwise {
		pw := payloadPairwise{
			ID:           sess.ID,
			LocalDevice:  string(sess.LocalDevice),
			RemoteDevice: string(sess.RemoteDevice),
			State:        string(sess.State),
			Ratchet:      packRatchet(sess.Ratchet),
			Establish:    sess.Establish,
			CreatedUTC:   sess.CreatedUTC,
			UpdatedUTC:   sess.UpdatedUTC,
		}
		p.Pairwise = append(p.Pairwise, pw)
	}
	for _, g := range state.Groups {
		p.Groups = append(p.Groups, payloadGroup{
			SessionID:        string(g.SessionID),
			ConversationID:   string(g.ConversationID),
			SenderDevice:     string(g.SenderDevice),
			Role:             string(g.Role),
			ChainKey:         g.ChainKey.Reveal(),
			BaseIndex:        g.BaseIndex,
			NextIndex:        g.NextIndex,
			MessagesSent:     g.MessagesSent,
			MessagesReceived: g.MessagesReceived,
			CreatedUTC:       g.CreatedUTC,
		})
	}
	return p
}

func packRatchet(st domain.RatchetState) payloadRatchet {
	p := payloadRatchet{
		RootKey:   st.RootKey,
		DHPriv:    st.DHPriv.Slice(),
		DHPub:     st.DHPub.Slice(),
		PeerDHPub: st.PeerDHPub.Slice(),
		SendCK:    st.SendCK,
		RecvCK:    st.RecvCK,
		Ns:        st.Ns,
		Nr:        st.Nr,
		PN:        st.PN,
	}
	if len(st.Skipped) > 0 {
		p.Skipped = make(map[string][]byte, len(st.Skipped))
		for k, v := range st.Skipped {
			p.Skipped[base64.StdEncoding.EncodeToString([]byte(k))] = v
		}
	}
	return p
}

func unpack(p payload) (domain.DeviceState, error) {
	state := domain.DeviceState{
		Identity: domain.DeviceIdentity{
			DeviceID:   domain.DeviceID(p.Identity.DeviceID),
			CreatedUTC: p.Identity.CreatedUTC,
		},
	}
	copy(state.Identity.XPub[:], p.Identity.XPub)
	copy(state.Identity.XPriv[:], p.Identity.XPriv)
	copy(state.Identity.EdPub[:], p.Identity.EdPub)
	copy(state.Identity.EdPriv[:], p.Identity.EdPriv)

	for _, pw := range p.Pairwise {
		st, err := unpackRatchet(pw.Ratchet)
		if err != nil {
			return domain.DeviceState{}, err
		}
		state.Pairwise = append(state.Pairwise, domain.PairwiseSession{
			ID:           pw.ID,
			LocalDevice:  domain.DeviceID(pw.LocalDevice),
			RemoteDevice: domain.DeviceID(pw.RemoteDevice),
			State:        domain.SessionState(pw.State),
			Ratchet:      st,
			Establish:    pw.Establish,
			CreatedUTC:   pw.CreatedUTC,
			UpdatedUTC:   pw.UpdatedUTC,
		})
	}
	for _, g := range p.Groups {
		state.Groups = append(state.Groups, domain.GroupSession{
			SessionID:        domain.SessionID(g.SessionID),
			ConversationID:   domain.ConversationID(g.ConversationID),
			SenderDevice:     domain.DeviceID(g.SenderDevice),
			Role:             domain.GroupRole(g.Role),
			ChainKey:         domain.NewSecret(g.ChainKey),
			BaseIndex:        g.BaseIndex,
			NextIndex:        g.NextIndex,
			MessagesSent:     g.MessagesSent,
			MessagesReceived: g.MessagesReceived,
			CreatedUTC:       g.CreatedUTC,
		})
	}
	return state, nil
}

func unpackRatchet(p payloadRatchet) (domain.RatchetState, error) {
	st := domain.RatchetState{
		RootKey: p.RootKey,
		SendCK:  p.SendCK,
		RecvCK:  p.RecvCK,
		Ns:      p.Ns,
		Nr:      p.Nr,
		PN:      p.PN,
		Skipped: make(map[string][]byte, len(p.Skipped)),
	}
	copy(st.DHPriv[:], p.DHPriv)
	copy(st.DHPub[:], p.DHPub)
	copy(st.PeerDHPub[:], p.PeerDHPub)
	for k, v := range p.Skipped {
		raw, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return st, fmt.Errorf("decode skipped key id: %w", err)
		}
		st.Skipped[string(raw)] = v
	}
	return st, nil
}
