package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"keymesh/internal/domain"
)

// persistedGroup mirrors domain.GroupSession with plain bytes for the chain
// key; the Secret wrapper refuses JSON by design.
type persistedGroup struct {
	ChainKey         []byte `json:"chain_key"`
	BaseIndex        uint32 `json:"base_index"`
	NextIndex        uint32 `json:"next_index"`
	MessagesSent     uint32 `json:"messages_sent"`
	MessagesReceived uint32 `json:"messages_received"`
}

// SaveGroup upserts a session. Saving an outbound session also repoints the
// conversation's outbound pointer at it; the superseded session's rows stay
// in place so pre-rotation traffic remains decryptable.
func (s *Store) SaveGroup(ctx context.Context, g domain.GroupSession) error {
	record, err := json.Marshal(persistedGroup{
		ChainKey:         g.ChainKey.Reveal(),
		BaseIndex:        g.BaseIndex,
		NextIndex:        g.NextIndex,
		MessagesSent:     g.MessagesSent,
		MessagesReceived: g.MessagesReceived,
	})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO group_sessions (session_id, role, conversation_id, sender_device, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, role) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at`,
		g.SessionID, g.Role, g.ConversationID, g.SenderDevice, record, g.CreatedUTC, nowUnix(),
	); err != nil {
		return fmt.Errorf("upsert group session: %w", err)
	}

	if g.Role == domain.RoleOutbound {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbound_pointers (conversation_id, session_id) VALUES (?, ?)
			ON CONFLICT(conversation_id) DO UPDATE SET session_id = excluded.session_id`,
			g.ConversationID, g.SessionID,
		); err != nil {
			return fmt.Errorf("repoint outbound session: %w", err)
		}
	}
	return tx.Commit()
}

// OutboundGroup returns the conversation's current outbound session.
func (s *Store) OutboundGroup(ctx context.Context, conv domain.ConversationID) (domain.GroupSession, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT g.session_id, g.role, g.conversation_id, g.sender_device, g.record, g.created_at
		FROM outbound_pointers p
		JOIN group_sessions g ON g.session_id = p.session_id AND g.role = ?
		WHERE p.conversation_id = ?`,
		domain.RoleOutbound, conv,
	)
	return scanGroup(row)
}

// InboundGroup returns the inbound copy of a session held to decrypt one
// sender.
func (s *Store) InboundGroup(ctx context.Context, id domain.SessionID, sender domain.DeviceID) (domain.GroupSession, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, role, conversation_id, sender_device, record, created_at
		FROM group_sessions
		WHERE session_id = ? AND role = ? AND sender_device = ?`,
		id, domain.RoleInbound, sender,
	)
	return scanGroup(row)
}

// ListGroups returns every stored group session.
func (s *Store) ListGroups(ctx context.Context) ([]domain.GroupSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, role, conversation_id, sender_device, record, created_at
		FROM group_sessions ORDER BY created_at, session_id, role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GroupSession
	for rows.Next() {
		g, ok, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, g)
		}
	}
	return out, rows.Err()
}

func scanGroup(r rowScanner) (domain.GroupSession, bool, error) {
	var (
		g      domain.GroupSession
		record []byte
	)
	err := r.Scan(&g.SessionID, &g.Role, &g.ConversationID, &g.SenderDevice, &record, &g.CreatedUTC)
	if err == sql.ErrNoRows {
		return domain.GroupSession{}, false, nil
	}
	if err != nil {
		return domain.GroupSession{}, false, err
	}
	var p persistedGroup
	if err := json.Unmarshal(record, &p); err != nil {
		return domain.GroupSession{}, false, fmt.Errorf("decode group record: %w", err)
	}
	g.ChainKey = domain.NewSecret(p.ChainKey)
	g.BaseIndex = p.BaseIndex
	g.NextIndex = p.NextIndex
	g.MessagesSent = p.MessagesSent
	g.MessagesReceived = p.MessagesReceived
	return g, true, nil
}

var _ domain.GroupStore = (*Store)(nil)
