package identity

import (
	"context"
	"sync"

	"keymesh/internal/domain"
)

// Provider hands services the unlocked identity, decrypting it once and
// caching the result for the life of the process.
type Provider struct {
	ids        domain.IdentityStore
	passphrase string

	mu     sync.Mutex
	cached *domain.DeviceIdentity
}

// NewProvider binds an identity store to the passphrase that unlocks it.
func NewProvider(ids domain.IdentityStore, passphrase string) *Provider {
	return &Provider{ids: ids, passphrase: passphrase}
}

// Identity returns the unlocked device identity.
func (p *Provider) Identity(_ context.Context) (domain.DeviceIdentity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return *p.cached, nil
	}
	id, err := p.ids.LoadIdentity(p.passphrase)
	if err != nil {
		return domain.DeviceIdentity{}, err
	}
	p.cached = &id
	return id, nil
}

var _ domain.IdentityProvider = (*Provider)(nil)
