package group

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"keymesh/internal/domain"
	"keymesh/internal/protocol/senderkey"
	"keymesh/internal/util/memzero"
)

// Service runs the group sessions. Operations within one conversation are
// serialized; conversations proceed independently.
type Service struct {
	groups      domain.GroupStore
	ids         domain.IdentityProvider
	rotateAfter uint32
	maxAdvance  uint32

	mu    sync.Mutex
	locks map[domain.ConversationID]*sync.Mutex
}

// New returns a group service. rotateAfter is the message count at which
// the outbound session is replaced; maxAdvance bounds how far forward an
// inbound chain may be walked for a single message.
func New(groups domain.GroupStore, ids domain.IdentityProvider, rotateAfter, maxAdvance uint32) *Service {
	if rotateAfter == 0 {
		rotateAfter = 100
	}
	return &Service{
		groups:      groups,
		ids:         ids,
		rotateAfter: rotateAfter,
		maxAdvance:  maxAdvance,
		locks:       make(map[domain.ConversationID]*sync.Mutex),
	}
}

func (s *Service) lock(conv domain.ConversationID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[conv]
	if !ok {
		l = &sync.Mutex{}
		s.locks[conv] = l
	}
	return l
}

// Encrypt seals plaintext under the conversation's outbound session,
// creating one when none exists and rotating once the configured message
// count is reached. A non-nil export means a new session was created and
// its key material must be fanned out before recipients can decrypt. The
// advanced chain state is persisted before the envelope is returned.
func (s *Service) Encrypt(ctx context.Context, conv domain.ConversationID, plaintext []byte) (domain.MessageEnvelope, *domain.SenderKeyExport, error) {
	l := s.lock(conv)
	l.Lock()
	defer l.Unlock()

	out, ok, err := s.groups.OutboundGroup(ctx, conv)
	if err != nil {
		return domain.MessageEnvelope{}, nil, err
	}
	var export *domain.SenderKeyExport
	if !ok || out.MessagesSent >= s.rotateAfter {
		out, err = s.createOutbound(ctx, conv)
		if err != nil {
			return domain.MessageEnvelope{}, nil, err
		}
		ex := exportAt(out, out.NextIndex)
		export = &ex
	}

	next, nonce, ct, err := senderkey.Seal(out.ChainKey.Reveal(), out.SessionID, out.NextIndex, plaintext)
	if err != nil {
		return domain.MessageEnvelope{}, nil, err
	}
	env := domain.MessageEnvelope{
		ConversationID: conv,
		SessionID:      out.SessionID,
		ChainIndex:     out.NextIndex,
		Algorithm:      domain.AlgorithmSenderKeyV1,
		Nonce:          nonce,
		Ciphertext:     ct,
	}

	old := out.ChainKey
	out.ChainKey = domain.NewSecret(next)
	memzero.Zero(next)
	old.Wipe()
	out.NextIndex++
	out.MessagesSent++
	if err := s.groups.SaveGroup(ctx, out); err != nil {
		return domain.MessageEnvelope{}, nil, err
	}
	return env, export, nil
}

// Decrypt opens an envelope from sender using the matching inbound session.
// domain.ErrUnknownSession means the key material has not arrived yet; the
// caller should claim pending shares and retry.
func (s *Service) Decrypt(ctx context.Context, conv domain.ConversationID, sender domain.DeviceID, env domain.MessageEnvelope) ([]byte, error) {
	if env.Algorithm != domain.AlgorithmSenderKeyV1 {
		return nil, fmt.Errorf("unsupported algorithm %q", env.Algorithm)
	}

	l := s.lock(conv)
	l.Lock()
	defer l.Unlock()

	in, ok, err := s.groups.InboundGroup(ctx, env.SessionID, sender)
	if err != nil {
		return nil, err
	}
	if !ok || in.ConversationID != conv {
		return nil, domain.ErrUnknownSession
	}

	pt, err := senderkey.Open(in.ChainKey.Reveal(), in.BaseIndex, env.SessionID, env.ChainIndex, env.Nonce, env.Ciphertext, s.maxAdvance)
	if err != nil {
		return nil, err
	}

	in.MessagesReceived++
	if env.ChainIndex >= in.NextIndex {
		in.NextIndex = env.ChainIndex + 1
	}
	if err := s.groups.SaveGroup(ctx, in); err != nil {
		return nil, err
	}
	return pt, nil
}

// Rotate abandons the conversation's outbound session and starts a fresh
// chain. The returned export must be fanned out to the participants that
// should read from the new session.
func (s *Service) Rotate(ctx context.Context, conv domain.ConversationID) (domain.SenderKeyExport, error) {
	l := s.lock(conv)
	l.Lock()
	defer l.Unlock()

	out, err := s.createOutbound(ctx, conv)
	if err != nil {
		return domain.SenderKeyExport{}, err
	}
	return exportAt(out, 0), nil
}

// ExportOutbound re-exports the current outbound session at its present
// index. A device receiving this copy can read from here on but nothing
// earlier, which is the right shape for a mid-session joiner.
func (s *Service) ExportOutbound(ctx context.Context, conv domain.ConversationID) (domain.SenderKeyExport, bool, error) {
	l := s.lock(conv)
	l.Lock()
	defer l.Unlock()

	out, ok, err := s.groups.OutboundGroup(ctx, conv)
	if err != nil || !ok {
		return domain.SenderKeyExport{}, false, err
	}
	return exportAt(out, out.NextIndex), true, nil
}

// ImportInbound installs claimed key material as an inbound session. An
// existing copy with an equal or earlier base index wins; key material is
// never replaced with a later starting point.
func (s *Service) ImportInbound(ctx context.Context, export domain.SenderKeyExport) error {
	l := s.lock(export.ConversationID)
	l.Lock()
	defer l.Unlock()

	existing, ok, err := s.groups.InboundGroup(ctx, export.SessionID, export.SenderDevice)
	if err != nil {
		return err
	}
	if ok && existing.BaseIndex <= export.BaseIndex {
		return nil
	}
	return s.groups.SaveGroup(ctx, domain.GroupSession{
		SessionID:      export.SessionID,
		ConversationID: export.ConversationID,
		SenderDevice:   export.SenderDevice,
		Role:           domain.RoleInbound,
		ChainKey:       domain.NewSecret(export.ChainKey),
		BaseIndex:      export.BaseIndex,
		NextIndex:      export.BaseIndex,
		CreatedUTC:     time.Now().Unix(),
	})
}

// createOutbound starts a fresh chain and stores both the outbound session
// and this device's own inbound copy, so the sender can decrypt its own
// envelopes.
func (s *Service) createOutbound(ctx context.Context, conv domain.ConversationID) (domain.GroupSession, error) {
	id, err := s.ids.Identity(ctx)
	if err != nil {
		return domain.GroupSession{}, err
	}
	ck, err := senderkey.NewChainKey()
	if err != nil {
		return domain.GroupSession{}, err
	}
	defer memzero.Zero(ck)

	now := time.Now().Unix()
	out := domain.GroupSession{
		SessionID:      domain.SessionID(uuid.NewString()),
		ConversationID: conv,
		SenderDevice:   id.DeviceID,
		Role:           domain.RoleOutbound,
		ChainKey:       domain.NewSecret(ck),
		CreatedUTC:     now,
	}
	self := out
	self.Role = domain.RoleInbound
	self.ChainKey = domain.NewSecret(ck)

	if err := s.groups.SaveGroup(ctx, out); err != nil {
		return domain.GroupSession{}, err
	}
	if err := s.groups.SaveGroup(ctx, self); err != nil {
		return domain.GroupSession{}, err
	}
	return out, nil
}

func exportAt(g domain.GroupSession, index uint32) domain.SenderKeyExport {
	return domain.SenderKeyExport{
		SessionID:      g.SessionID,
		ConversationID: g.ConversationID,
		SenderDevice:   g.SenderDevice,
		ChainKey:       append([]byte(nil), g.ChainKey.Reveal()...),
		BaseIndex:      index,
	}
}

var _ domain.InboundImporter = (*Service)(nil)
