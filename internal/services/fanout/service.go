package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keymesh/internal/domain"
)

// Service wraps session key material per recipient and records one share
// per (session, recipient).
type Service struct {
	shares   domain.ShareStore
	channel  domain.PairwiseChannel
	importer domain.InboundImporter
	ids      domain.IdentityProvider
}

// New returns a fan-out service.
func New(shares domain.ShareStore, channel domain.PairwiseChannel, importer domain.InboundImporter, ids domain.IdentityProvider) *Service {
	return &Service{shares: shares, channel: channel, importer: importer, ids: ids}
}

// ShareSession fans export out to recipients. Each recipient gets its own
// pairwise-encrypted copy; a failure for one recipient never blocks the
// rest. Recipients that already hold a share for this session are skipped,
// so retrying after a partial failure only fills the gaps. The sender
// itself is never a recipient.
func (s *Service) ShareSession(ctx context.Context, export domain.SenderKeyExport, recipients []domain.DeviceID) []domain.ShareOutcome {
	outcomes := make([]domain.ShareOutcome, 0, len(recipients))
	for _, r := range recipients {
		if r == export.SenderDevice {
			continue
		}
		outcomes = append(outcomes, s.shareOne(ctx, export, r))
	}
	return outcomes
}

func (s *Service) shareOne(ctx context.Context, export domain.SenderKeyExport, recipient domain.DeviceID) domain.ShareOutcome {
	out := domain.ShareOutcome{Recipient: recipient}

	exists, err := s.shares.HasShare(ctx, export.SessionID, recipient)
	if err != nil {
		out.Err = err
		return out
	}
	if exists {
		return out
	}

	plaintext, err := json.Marshal(export)
	if err != nil {
		out.Err = err
		return out
	}
	msg, err := s.channel.EncryptTo(ctx, recipient, plaintext)
	if err != nil {
		out.Err = fmt.Errorf("wrap for %s: %w", recipient, err)
		return out
	}
	wrapped, err := json.Marshal(msg)
	if err != nil {
		out.Err = err
		return out
	}

	share := domain.SessionShare{
		ID:              domain.ShareID(uuid.NewString()),
		SessionID:       export.SessionID,
		ConversationID:  export.ConversationID,
		SenderDevice:    export.SenderDevice,
		RecipientDevice: recipient,
		Ciphertext:      wrapped,
		CreatedUTC:      time.Now().Unix(),
	}
	created, err := s.shares.InsertShare(ctx, share)
	if err != nil {
		out.Err = err
		return out
	}
	out.Created = created
	if created {
		out.ShareID = share.ID
	}
	return out
}

// ClaimAndImport claims every pending share addressed to this device,
// unwraps each through its pairwise channel and installs the key material
// as an inbound session. Shares that fail to import are reported but do
// not stop the rest; a failed share stays claimed and must be re-shared by
// its sender.
func (s *Service) ClaimAndImport(ctx context.Context) (int, error) {
	id, err := s.ids.Identity(ctx)
	if err != nil {
		return 0, err
	}
	claimed, err := s.shares.ClaimPending(ctx, id.DeviceID)
	if err != nil {
		return 0, err
	}

	imported := 0
	var errs []error
	for _, sh := range claimed {
		if err := s.importShare(ctx, sh); err != nil {
			errs = append(errs, fmt.Errorf("share %s from %s: %w", sh.ID, sh.SenderDevice, err))
			continue
		}
		imported++
	}
	return imported, errors.Join(errs...)
}

func (s *Service) importShare(ctx context.Context, sh domain.SessionShare) error {
	var msg domain.PairwiseMessage
	if err := json.Unmarshal(sh.Ciphertext, &msg); err != nil {
		return fmt.Errorf("decode share wrapper: %w", err)
	}
	plaintext, err := s.channel.DecryptFrom(ctx, msg)
	if err != nil {
		return err
	}
	var export domain.SenderKeyExport
	if err := json.Unmarshal(plaintext, &export); err != nil {
		return fmt.Errorf("decode key export: %w", err)
	}
	// The authenticated payload is authoritative, not the share row.
	if export.SessionID != sh.SessionID {
		return fmt.Errorf("share %s payload names session %s", sh.ID, export.SessionID)
	}
	return s.importer.ImportInbound(ctx, export)
}
