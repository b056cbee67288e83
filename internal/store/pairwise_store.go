package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"keymesh/internal/domain"
)

// persistedRatchet mirrors domain.RatchetState with plain byte slices so it
// can be marshalled; the domain type deliberately refuses JSON. Skipped-key
// identifiers are binary, so they are base64-encoded for the JSON map.
type persistedRatchet struct {
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

type persistedPairwise struct {
	Ratchet   persistedRatchet      `json:"ratchet"`
	Establish *domain.Establishment `json:"establish,omitempty"`
}

func packRatchet(st domain.RatchetState) persistedRatchet {
	p := persistedRatchet{
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

func unpackRatchet(p persistedRatchet) (domain.RatchetState, error) {
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

// SavePairwise upserts a session. Persisting with state active demotes any
// other active session for the same remote device to retired in the same
// transaction, keeping the one-active-per-remote invariant.
func (s *Store) SavePairwise(ctx context.Context, sess domain.PairwiseSession) error {
	record, err := json.Marshal(persistedPairwise{
		Ratchet:   packRatchet(sess.Ratchet),
		Establish: sess.Establish,
	})
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if sess.State == domain.SessionActive {
		if _, err := tx.ExecContext(ctx,
			`UPDATE pairwise_sessions SET state = ?, updated_at = ? WHERE remote_device = ? AND state = ? AND id <> ?`,
			domain.SessionRetired, nowUnix(), sess.RemoteDevice, domain.SessionActive, sess.ID,
		); err != nil {
			return fmt.Errorf("demote active session: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO pairwise_sessions (id, local_device, remote_device, state, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		sess.ID, sess.LocalDevice, sess.RemoteDevice, sess.State, record, sess.CreatedUTC, nowUnix(),
	); err != nil {
		return fmt.Errorf("upsert pairwise session: %w", err)
	}
	return tx.Commit()
}

// ActivePairwise returns the single active session for a remote device.
func (s *Store) ActivePairwise(ctx context.Context, remote domain.DeviceID) (domain.PairwiseSession, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, local_device, remote_device, state, record, created_at, updated_at
		FROM pairwise_sessions WHERE remote_device = ? AND state = ?`,
		remote, domain.SessionActive,
	)
	sess, err := scanPairwise(row)
	if err == sql.ErrNoRows {
		return domain.PairwiseSession{}, false, nil
	}
	if err != nil {
		return domain.PairwiseSession{}, false, err
	}
	return sess, true, nil
}

// SetPairwiseState moves a session between lifecycle states.
func (s *Store) SetPairwiseState(ctx context.Context, id string, state domain.SessionState) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pairwise_sessions SET state = ?, updated_at = ? WHERE id = ?`,
		state, nowUnix(), id,
	)
	return err
}

// ListPairwise returns every stored session, newest first.
func (s *Store) ListPairwise(ctx context.Context) ([]domain.PairwiseSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, local_device, remote_device, state, record, created_at, updated_at
		FROM pairwise_sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PairwiseSession
	for rows.Next() {
		sess, err := scanPairwise(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPairwise(r rowScanner) (domain.PairwiseSession, error) {
	var (
		sess   domain.PairwiseSession
		record []byte
	)
	if err := r.Scan(&sess.ID, &sess.LocalDevice, &sess.RemoteDevice, &sess.State, &record, &sess.CreatedUTC, &sess.UpdatedUTC); err != nil {
		return sess, err
	}
	var p persistedPairwise
	if err := json.Unmarshal(record, &p); err != nil {
		return sess, fmt.Errorf("decode pairwise record: %w", err)
	}
	st, err := unpackRatchet(p.Ratchet)
	if err != nil {
		return sess, err
	}
	sess.Ratchet = st
	sess.Establish = p.Establish
	return sess, nil
}

var _ domain.PairwiseStore = (*Store)(nil)
