package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"keymesh/internal/domain"
	"keymesh/internal/store"
)

func groupSession(conv domain.ConversationID, role domain.GroupRole) domain.GroupSession {
	return domain.GroupSession{
		SessionID:      domain.SessionID(uuid.NewString()),
		ConversationID: conv,
		SenderDevice:   "device-a",
		Role:           role,
		ChainKey:       domain.NewSecret([]byte("0123456789abcdef0123456789abcdef")),
		CreatedUTC:     1700000000,
	}
}

func TestGroupStore_OutboundPointerFollowsRotation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first := groupSession("conv-1", domain.RoleOutbound)
	require.NoError(t, s.SaveGroup(ctx, first))

	got, ok, err := s.OutboundGroup(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.SessionID, got.SessionID)

	// Rotation saves a new outbound session; the pointer must follow and
	// the old session's rows stay readable.
	second := groupSession("conv-1", domain.RoleOutbound)
	require.NoError(t, s.SaveGroup(ctx, second))

	got, ok, err = s.OutboundGroup(ctx, "conv-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.SessionID, got.SessionID)

	all, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestGroupStore_InboundLookupBySessionAndSender(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	in := groupSession("conv-1", domain.RoleInbound)
	in.BaseIndex = 7
	in.NextIndex = 7
	require.NoError(t, s.SaveGroup(ctx, in))

	got, ok, err := s.InboundGroup(ctx, in.SessionID, "device-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(7), got.BaseIndex)
	require.Equal(t, in.ChainKey.Reveal(), got.ChainKey.Reveal())

	_, ok, err = s.InboundGroup(ctx, in.SessionID, "device-z")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGroupStore_MissingOutbound(t *testing.T) {
	s := newStore(t)
	_, ok, err := s.OutboundGroup(context.Background(), "conv-none")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ImplementsInterfaces(t *testing.T) {
	var _ domain.GroupStore = (*store.Store)(nil)
	var _ domain.ShareStore = (*store.Store)(nil)
	var _ domain.PairwiseStore = (*store.Store)(nil)
	var _ domain.PreKeyStore = (*store.Store)(nil)
}
