package messaging

import (
	"context"
	"errors"
	"fmt"

	"keymesh/internal/domain"
	"keymesh/internal/services/fanout"
	"keymesh/internal/services/group"
)

// Service is the conversation-level API. Encrypt and Decrypt hide the key
// lifecycle: sessions are created, rotated, fanned out and claimed without
// the caller tracking any of it.
type Service struct {
	groups *group.Service
	shares *fanout.Service
	roster domain.Roster
}

// New returns a messaging service.
func New(groups *group.Service, shares *fanout.Service, roster domain.Roster) *Service {
	return &Service{groups: groups, shares: shares, roster: roster}
}

// Encrypt seals plaintext for a conversation. When this message created a
// new session, its key is fanned out to the current participants and the
// per-recipient outcomes are returned. The envelope is always valid once
// returned; a failed fan-out is recovered by ShareCurrentSession or by the
// outcome-driven retry of the caller.
func (s *Service) Encrypt(ctx context.Context, conv domain.ConversationID, plaintext []byte) (domain.MessageEnvelope, []domain.ShareOutcome, error) {
	env, export, err := s.groups.Encrypt(ctx, conv, plaintext)
	if err != nil {
		return domain.MessageEnvelope{}, nil, err
	}
	if export == nil {
		return env, nil, nil
	}
	participants, err := s.roster.Participants(ctx, conv)
	if err != nil {
		return env, nil, fmt.Errorf("fan out %s: %w", env.SessionID, err)
	}
	return env, s.shares.ShareSession(ctx, *export, participants), nil
}

// Decrypt opens an envelope from sender. When the session is unknown the
// pending shares for this device are claimed and imported once, then the
// envelope is retried; key material that arrived out of order with the
// message resolves transparently.
func (s *Service) Decrypt(ctx context.Context, conv domain.ConversationID, sender domain.DeviceID, env domain.MessageEnvelope) ([]byte, error) {
	pt, err := s.groups.Decrypt(ctx, conv, sender, env)
	if !errors.Is(err, domain.ErrUnknownSession) {
		return pt, err
	}
	// The claim batch may mix the share this envelope needs with unrelated
	// broken ones. Retry regardless of import errors; report them only when
	// the retry still cannot open the envelope.
	_, impErr := s.shares.ClaimAndImport(ctx)
	pt, err = s.groups.Decrypt(ctx, conv, sender, env)
	if err != nil && impErr != nil {
		return nil, errors.Join(err, impErr)
	}
	return pt, err
}

// DeviceJoined rotates the conversation's outbound session and fans the
// fresh key out to the full roster. The joiner reads from the new session
// onward; everything earlier stays out of reach.
func (s *Service) DeviceJoined(ctx context.Context, conv domain.ConversationID) ([]domain.ShareOutcome, error) {
	return s.rotateAndShare(ctx, conv)
}

// DeviceLeft rotates the outbound session after a departure. The roster no
// longer lists the leaver, so the replacement key never reaches it and new
// traffic is sealed away from the old membership.
func (s *Service) DeviceLeft(ctx context.Context, conv domain.ConversationID) ([]domain.ShareOutcome, error) {
	return s.rotateAndShare(ctx, conv)
}

func (s *Service) rotateAndShare(ctx context.Context, conv domain.ConversationID) ([]domain.ShareOutcome, error) {
	export, err := s.groups.Rotate(ctx, conv)
	if err != nil {
		return nil, err
	}
	participants, err := s.roster.Participants(ctx, conv)
	if err != nil {
		return nil, err
	}
	return s.shares.ShareSession(ctx, export, participants), nil
}

// ShareCurrentSession re-fans-out the existing outbound session without
// rotating, filling the gaps a partial fan-out left. Reports ok=false when
// the conversation has no outbound session yet.
func (s *Service) ShareCurrentSession(ctx context.Context, conv domain.ConversationID) ([]domain.ShareOutcome, bool, error) {
	export, ok, err := s.groups.ExportOutbound(ctx, conv)
	if err != nil || !ok {
		return nil, false, err
	}
	participants, err := s.roster.Participants(ctx, conv)
	if err != nil {
		return nil, true, err
	}
	return s.shares.ShareSession(ctx, export, participants), true, nil
}
