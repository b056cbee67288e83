package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"keymesh/internal/domain"
)

// SaveSignedPreKey stores a signed pre-key pair with its signature.
func (s *Store) SaveSignedPreKey(ctx context.Context, id domain.SignedPreKeyID, priv domain.X25519Private, pub domain.X25519Public, sig []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signed_prekeys (id, priv, pub, sig, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET priv = excluded.priv, pub = excluded.pub, sig = excluded.sig`,
		id, priv.Slice(), pub.Slice(), sig, nowUnix(),
	)
	if err != nil {
		return fmt.Errorf("save signed prekey: %w", err)
	}
	return nil
}

// LoadSignedPreKey fetches a signed pre-key pair by id.
func (s *Store) LoadSignedPreKey(ctx context.Context, id domain.SignedPreKeyID) (priv domain.X25519Private, pub domain.X25519Public, sig []byte, ok bool, err error) {
	var privB, pubB []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT priv, pub, sig FROM signed_prekeys WHERE id = ?`, id,
	).Scan(&privB, &pubB, &sig)
	if errors.Is(err, sql.ErrNoRows) {
		return priv, pub, nil, false, nil
	}
	if err != nil {
		return priv, pub, nil, false, err
	}
	copy(priv[:], privB)
	copy(pub[:], pubB)
	return priv, pub, sig, true, nil
}

// SetCurrentSignedPreKeyID marks which signed pre-key bundles advertise.
func (s *Store) SetCurrentSignedPreKeyID(ctx context.Context, id domain.SignedPreKeyID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE signed_prekeys SET is_current = 0 WHERE is_current = 1`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE signed_prekeys SET is_current = 1 WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CurrentSignedPreKeyID returns the advertised signed pre-key id.
func (s *Store) CurrentSignedPreKeyID(ctx context.Context) (domain.SignedPreKeyID, bool, error) {
	var id domain.SignedPreKeyID
	err := s.db.QueryRowContext(ctx, `SELECT id FROM signed_prekeys WHERE is_current = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// SaveOneTimePreKeys stores a batch of one-time pre-key pairs.
func (s *Store) SaveOneTimePreKeys(ctx context.Context, pairs []domain.OneTimePreKeyPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO one_time_prekeys (id, priv, pub, created_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.Priv.Slice(), p.Pub.Slice(), nowUnix(),
		); err != nil {
			return fmt.Errorf("save one-time prekey: %w", err)
		}
	}
	return tx.Commit()
}

// ConsumeOneTimePreKey removes and returns a one-time pre-key. Each key is
// handed out at most once; a second consume of the same id reports !ok.
func (s *Store) ConsumeOneTimePreKey(ctx context.Context, id domain.OneTimePreKeyID) (priv domain.X25519Private, pub domain.X25519Public, ok bool, err error) {
	var privB, pubB []byte
	err = s.db.QueryRowContext(ctx,
		`DELETE FROM one_time_prekeys WHERE id = ? RETURNING priv, pub`, id,
	).Scan(&privB, &pubB)
	if errors.Is(err, sql.ErrNoRows) {
		return priv, pub, false, nil
	}
	if err != nil {
		return priv, pub, false, err
	}
	copy(priv[:], privB)
	copy(pub[:], pubB)
	return priv, pub, true, nil
}

// ListOneTimePreKeyPublics returns the public halves still available.
func (s *Store) ListOneTimePreKeyPublics(ctx context.Context) ([]domain.OneTimePreKeyPublic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pub FROM one_time_prekeys ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OneTimePreKeyPublic
	for rows.Next() {
		var (
			p    domain.OneTimePreKeyPublic
			pubB []byte
		)
		if err := rows.Scan(&p.ID, &pubB); err != nil {
			return nil, err
		}
		copy(p.Pub[:], pubB)
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ domain.PreKeyStore = (*Store)(nil)
