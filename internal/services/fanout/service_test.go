package fanout_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"keymesh/internal/domain"
	"keymesh/internal/services/fanout"
	"keymesh/internal/services/group"
	"keymesh/internal/services/identity"
	"keymesh/internal/services/pairwise"
	"keymesh/internal/store"
)

type directory map[domain.DeviceID]domain.PeerKeyBundle

func (d directory) Bundle(_ context.Context, dev domain.DeviceID) (domain.PeerKeyBundle, error) {
	b, ok := d[dev]
	if !ok {
		return domain.PeerKeyBundle{}, domain.ErrUnknownDevice
	}
	return b, nil
}

type device struct {
	id     domain.DeviceID
	groups *group.Service
	shares *fanout.Service
}

// newDevice builds one device's full stack. The share store is shared
// between devices because it models the host's delivery surface; everything
// else is device-local.
func newDevice(t *testing.T, dir directory, shared domain.ShareStore) *device {
	t.Helper()
	ctx := context.Background()
	home := t.TempDir()

	st, err := store.New(filepath.Join(home, "keymesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ids := store.NewIdentityFileStore(home)
	idsvc := identity.New(ids, st, 8)
	_, err = idsvc.Generate(ctx, "pass")
	require.NoError(t, err)
	bundle, err := idsvc.Bundle(ctx, "pass")
	require.NoError(t, err)
	dir[bundle.DeviceID] = bundle

	provider := identity.NewProvider(ids, "pass")
	channel := pairwise.New(provider, st, st, dir, 64)
	groups := group.New(st, provider, 100, 1<<16)
	shares := fanout.New(shared, channel, groups, provider)
	return &device{id: bundle.DeviceID, groups: groups, shares: shares}
}

func newFixture(t *testing.T) (*device, *device, domain.ShareStore) {
	t.Helper()
	shared, err := store.New(filepath.Join(t.TempDir(), "shares.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = shared.Close() })

	dir := directory{}
	a := newDevice(t, dir, shared)
	b := newDevice(t, dir, shared)
	return a, b, shared
}

func TestShareClaimImport_EndToEnd(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newFixture(t)

	env, export, err := a.groups.Encrypt(ctx, "conv-1", []byte("hello"))
	require.NoError(t, err)
	require.NotNil(t, export)

	outcomes := a.shares.ShareSession(ctx, *export, []domain.DeviceID{a.id, b.id})
	require.Len(t, outcomes, 1, "sender is never a recipient")
	require.NoError(t, outcomes[0].Err)
	require.True(t, outcomes[0].Created)
	require.Equal(t, b.id, outcomes[0].Recipient)

	n, err := b.shares.ClaimAndImport(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pt, err := b.groups.Decrypt(ctx, "conv-1", a.id, env)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), pt)
}

func TestShareSession_Idempotent(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newFixture(t)

	_, export, err := a.groups.Encrypt(ctx, "conv-1", []byte("hello"))
	require.NoError(t, err)

	first := a.shares.ShareSession(ctx, *export, []domain.DeviceID{b.id})
	require.True(t, first[0].Created)

	second := a.shares.ShareSession(ctx, *export, []domain.DeviceID{b.id})
	require.NoError(t, second[0].Err)
	require.False(t, second[0].Created, "repeat fan-out must not create a second share")

	n, err := b.shares.ClaimAndImport(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = b.shares.ClaimAndImport(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "claims are one-shot")
}

func TestShareSession_FailureIsolatedPerRecipient(t *testing.T) {
	ctx := context.Background()
	a, b, _ := newFixture(t)

	_, export, err := a.groups.Encrypt(ctx, "conv-1", []byte("hello"))
	require.NoError(t, err)

	outcomes := a.shares.ShareSession(ctx, *export, []domain.DeviceID{"ghost", b.id})
	require.Len(t, outcomes, 2)

	byRecipient := map[domain.DeviceID]domain.ShareOutcome{}
	for _, o := range outcomes {
		byRecipient[o.Recipient] = o
	}
	require.ErrorIs(t, byRecipient["ghost"].Err, domain.ErrUnknownDevice)
	require.NoError(t, byRecipient[b.id].Err)
	require.True(t, byRecipient[b.id].Created, "one unreachable device must not block the rest")
}
