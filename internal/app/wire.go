package app

import (
	"os"

	"keymesh/internal/domain"
	"keymesh/internal/services/backup"
	"keymesh/internal/services/fanout"
	"keymesh/internal/services/group"
	"keymesh/internal/services/identity"
	"keymesh/internal/services/messaging"
	"keymesh/internal/services/pairwise"
	"keymesh/internal/store"
)

// Wire is the assembled service graph over one device's stores. The bundle
// directory and roster are the host's: keymesh never talks to a network
// itself.
type Wire struct {
	Store      *store.Store
	Identities *store.IdentityFileStore

	Identity  *identity.Service
	Provider  *identity.Provider
	Pairwise  *pairwise.Manager
	Groups    *group.Service
	Fanout    *fanout.Service
	Backup    *backup.Service
	Messaging *messaging.Service
}

// NewWire opens the stores under cfg.Home and connects the services.
// directory and roster may be nil when only local operations (init,
// fingerprint, backup) are used.
func NewWire(cfg Config, directory domain.BundleDirectory, roster domain.Roster) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, err
	}
	st, err := store.New(cfg.DBPath, store.WithClaimRetries(cfg.ClaimRetryAttempts))
	if err != nil {
		return nil, err
	}
	ids := store.NewIdentityFileStore(cfg.Home)

	provider := identity.NewProvider(ids, cfg.Passphrase)
	idsvc := identity.New(ids, st, cfg.OneTimePreKeyBatch)
	pw := pairwise.New(provider, st, st, directory, cfg.MaxSkippedMessageKeys)
	groups := group.New(st, provider, cfg.RotationMessageCount, cfg.MaxChainAdvance)
	shares := fanout.New(st, pw, groups, provider)
	bk := backup.New(ids, st, st, cfg.KDFIterations)
	msg := messaging.New(groups, shares, roster)

	return &Wire{
		Store:      st,
		Identities: ids,
		Identity:   idsvc,
		Provider:   provider,
		Pairwise:   pw,
		Groups:     groups,
		Fanout:     shares,
		Backup:     bk,
		Messaging:  msg,
	}, nil
}

// Close releases the database.
func (w *Wire) Close() error { return w.Store.Close() }
