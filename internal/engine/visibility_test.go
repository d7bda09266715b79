package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keeper/internal/apperrors"
	"keeper/internal/models"
)

func TestGetOrCreateDMChannelRequiresAcceptedFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.visibility.GetOrCreateDMChannel(ctx, f.alice, "bob")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	require.NoError(t, f.friends.SendRequest(ctx, "alice", f.bob.PublicID))
	_, err = f.visibility.GetOrCreateDMChannel(ctx, f.alice, "bob")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.visibility.GetOrCreateDMChannel(ctx, f.alice, "alice")
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
	_, err = f.visibility.GetOrCreateDMChannel(ctx, f.alice, "nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Empty(t, f.db.rooms)
}

func TestGetOrCreateDMChannelIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.befriend(t, f.alice, f.bob)
	f.bus.reset()

	first, err := f.visibility.GetOrCreateDMChannel(ctx, f.alice, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice & bob", first.Name)
	assert.NotEmpty(t, first.InviteCode)

	created := f.bus.ofType(models.EventDMChannelCreated)
	require.Len(t, created, 2)
	assert.ElementsMatch(t, []string{"user:alice", "user:bob"}, []string{created[0].Topic, created[1].Topic})
	f.bus.reset()

	second, err := f.visibility.GetOrCreateDMChannel(ctx, f.bob, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, f.db.rooms, 1)
	assert.Empty(t, f.bus.events)
}

func TestOpeningExistingDMClearsOpenersMarkerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.dm(t, f.alice, f.bob)
	require.NoError(t, f.visibility.Hide(ctx, f.alice, room.ID))
	require.NoError(t, f.visibility.Hide(ctx, f.bob, room.ID))

	_, err := f.visibility.GetOrCreateDMChannel(ctx, f.alice, "bob")
	require.NoError(t, err)

	assert.False(t, f.db.hidden[pair{f.alice.ID, room.ID}])
	assert.True(t, f.db.hidden[pair{f.bob.ID, room.ID}])
	assert.Empty(t, f.bus.events)
}

func TestHide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dm := f.dm(t, f.alice, f.bob)
	group := f.group(t, f.alice, f.bob)

	assert.ErrorIs(t, f.visibility.Hide(ctx, f.alice, group.ID), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.visibility.Hide(ctx, f.carol, dm.ID), apperrors.ErrForbidden)
	assert.ErrorIs(t, f.visibility.Hide(ctx, f.alice, 999), apperrors.ErrNotFound)

	require.NoError(t, f.visibility.Hide(ctx, f.alice, dm.ID))
	require.NoError(t, f.visibility.Hide(ctx, f.alice, dm.ID))
	assert.Len(t, f.db.hidden, 1)
}

func TestListDirectMessagesSkipsHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withBob := f.dm(t, f.alice, f.bob)
	withCarol := f.dm(t, f.alice, f.carol)
	f.group(t, f.alice)

	rooms, err := f.visibility.ListDirectMessages(ctx, f.alice, 0, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, withCarol.ID, rooms[0].ID)

	require.NoError(t, f.visibility.Hide(ctx, f.alice, withCarol.ID))
	rooms, err = f.visibility.ListDirectMessages(ctx, f.alice, 0, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, withBob.ID, rooms[0].ID)

	rooms, err = f.visibility.ListDirectMessages(ctx, f.carol, 0, 10)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}
