package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"keymesh/internal/domain"
)

// InsertShare writes one pending share. The UNIQUE(session_id,
// recipient_device) constraint plus INSERT OR IGNORE makes re-invocation
// after a partial fan-out a no-op for recipients that already have one;
// created reports whether a new row was written.
func (s *Store) InsertShare(ctx context.Context, sh domain.SessionShare) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_shares
			(id, session_id, conversation_id, sender_device, recipient_device, ciphertext, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sh.ID, sh.SessionID, sh.ConversationID, sh.SenderDevice, sh.RecipientDevice, sh.Ciphertext, sh.CreatedUTC,
	)
	if err != nil {
		return false, fmt.Errorf("insert share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HasShare reports whether a share already exists for (session, recipient),
// claimed or not.
func (s *Store) HasShare(ctx context.Context, session domain.SessionID, recipient domain.DeviceID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM session_shares WHERE session_id = ? AND recipient_device = ?`,
		session, recipient,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// ClaimPending atomically marks every unclaimed share for device as claimed
// and returns them. The conditional UPDATE ... RETURNING is a single
// statement, so concurrent claimants partition the pending set: each share
// goes to exactly one caller and a repeat claim returns nothing new.
// Lock contention is retried a bounded number of times before surfacing
// domain.ErrStoreBusy.
func (s *Store) ClaimPending(ctx context.Context, device domain.DeviceID) ([]domain.SessionShare, error) {
	var lastErr error
	for attempt := 0; attempt < s.retryAttempts; attempt++ {
		shares, err := s.claimOnce(ctx, device)
		if err == nil {
			return shares, nil
		}
		if !isBusy(err) {
			return nil, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("%w: %v", domain.ErrStoreBusy, lastErr)
}

func (s *Store) claimOnce(ctx context.Context, device domain.DeviceID) ([]domain.SessionShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE session_shares SET claimed = 1, claimed_at = ?
		WHERE recipient_device = ? AND claimed = 0
		RETURNING id, session_id, conversation_id, sender_device, recipient_device, ciphertext, created_at, claimed_at`,
		nowUnix(), device,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionShare
	for rows.Next() {
		var sh domain.SessionShare
		if err := rows.Scan(&sh.ID, &sh.SessionID, &sh.ConversationID, &sh.SenderDevice, &sh.RecipientDevice, &sh.Ciphertext, &sh.CreatedUTC, &sh.ClaimedUTC); err != nil {
			return nil, err
		}
		sh.Claimed = true
		out = append(out, sh)
	}
	return out, rows.Err()
}

var _ domain.ShareStore = (*Store)(nil)
