package pairwise_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"keymesh/internal/domain"
	"keymesh/internal/services/identity"
	"keymesh/internal/services/pairwise"
	"keymesh/internal/store"
)

// directory is an in-memory stand-in for the host's bundle directory.
type directory map[domain.DeviceID]domain.PeerKeyBundle

func (d directory) Bundle(_ context.Context, dev domain.DeviceID) (domain.PeerKeyBundle, error) {
	b, ok := d[dev]
	if !ok {
		return domain.PeerKeyBundle{}, domain.ErrUnknownDevice
	}
	return b, nil
}

type device struct {
	id  domain.DeviceID
	mgr *pairwise.Manager
	st  *store.Store
}

func newDevice(t *testing.T, dir directory) *device {
	t.Helper()
	ctx := context.Background()
	home := t.TempDir()

	st, err := store.New(filepath.Join(home, "keymesh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ids := store.NewIdentityFileStore(home)
	idsvc := identity.New(ids, st, 4)
	_, err = idsvc.Generate(ctx, "pass")
	require.NoError(t, err)

	bundle, err := idsvc.Bundle(ctx, "pass")
	require.NoError(t, err)
	dir[bundle.DeviceID] = bundle

	mgr := pairwise.New(identity.NewProvider(ids, "pass"), st, st, dir, 64)
	return &device{id: bundle.DeviceID, mgr: mgr, st: st}
}

func TestChannel_EstablishAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	msg, err := a.mgr.EncryptTo(ctx, b.id, []byte("hi"))
	require.NoError(t, err)
	require.NotNil(t, msg.Establish, "first message carries establishment parameters")

	pt, err := b.mgr.DecryptFrom(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), pt)

	reply, err := b.mgr.EncryptTo(ctx, a.id, []byte("yo"))
	require.NoError(t, err)
	pt, err = a.mgr.DecryptFrom(ctx, reply)
	require.NoError(t, err)
	require.Equal(t, []byte("yo"), pt)

	// A has decrypted a reply, so establishment parameters stop riding along.
	next, err := a.mgr.EncryptTo(ctx, b.id, []byte("again"))
	require.NoError(t, err)
	require.Nil(t, next.Establish)
	pt, err = b.mgr.DecryptFrom(ctx, next)
	require.NoError(t, err)
	require.Equal(t, []byte("again"), pt)
}

func TestChannel_ConsumesOneTimePreKey(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	before, err := b.st.ListOneTimePreKeyPublics(ctx)
	require.NoError(t, err)

	msg, err := a.mgr.EncryptTo(ctx, b.id, []byte("hi"))
	require.NoError(t, err)
	require.NotEmpty(t, msg.Establish.OneTimePreKeyID)
	_, err = b.mgr.DecryptFrom(ctx, msg)
	require.NoError(t, err)

	after, err := b.st.ListOneTimePreKeyPublics(ctx)
	require.NoError(t, err)
	require.Len(t, after, len(before)-1)
}

func TestChannel_ReplayRejected(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	msg, err := a.mgr.EncryptTo(ctx, b.id, []byte("once"))
	require.NoError(t, err)
	_, err = b.mgr.DecryptFrom(ctx, msg)
	require.NoError(t, err)

	_, err = b.mgr.DecryptFrom(ctx, msg)
	require.ErrorIs(t, err, domain.ErrReplayRejected)
}

func TestChannel_OutOfOrderAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	m1, err := a.mgr.EncryptTo(ctx, b.id, []byte("one"))
	require.NoError(t, err)
	m2, err := a.mgr.EncryptTo(ctx, b.id, []byte("two"))
	require.NoError(t, err)
	m3, err := a.mgr.EncryptTo(ctx, b.id, []byte("three"))
	require.NoError(t, err)

	pt, err := b.mgr.DecryptFrom(ctx, m3)
	require.NoError(t, err)
	require.Equal(t, []byte("three"), pt)

	// Skipped keys are persisted, so earlier messages still open.
	pt, err = b.mgr.DecryptFrom(ctx, m1)
	require.NoError(t, err)
	require.Equal(t, []byte("one"), pt)
	pt, err = b.mgr.DecryptFrom(ctx, m2)
	require.NoError(t, err)
	require.Equal(t, []byte("two"), pt)
}

func TestChannel_NoSessionNoEstablishment(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	msg, err := a.mgr.EncryptTo(ctx, b.id, []byte("hi"))
	require.NoError(t, err)
	msg.Establish = nil

	_, err = b.mgr.DecryptFrom(ctx, msg)
	require.ErrorIs(t, err, domain.ErrNoSession)
}

func TestChannel_RejectsTamperedBundle(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)
	b := newDevice(t, dir)

	bundle := dir[b.id]
	bundle.SignedPreKeySignature = append([]byte(nil), bundle.SignedPreKeySignature...)
	bundle.SignedPreKeySignature[0] ^= 0x01
	dir[b.id] = bundle

	_, err := a.mgr.EncryptTo(ctx, b.id, []byte("hi"))
	require.ErrorIs(t, err, pairwise.ErrBadSignedPreKey)
}

func TestChannel_UnknownDevice(t *testing.T) {
	ctx := context.Background()
	dir := directory{}
	a := newDevice(t, dir)

	_, err := a.mgr.EncryptTo(ctx, "nobody", []byte("hi"))
	require.ErrorIs(t, err, domain.ErrUnknownDevice)
}
