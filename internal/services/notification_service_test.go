package services

import (
	"context"
	"testing"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNotifyCreatesRecord(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	recipient := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	target := primitive.NewObjectID()
	require.NoError(t, svc.Notify(ctx, recipient, actor, ActionCommentAdded, "nice", &target))

	require.Len(t, store.notifs, 1)
	n := store.notifs[0]
	assert.Equal(t, recipient, n.UserID)
	assert.Equal(t, actor, n.ActorID)
	assert.Equal(t, ActionCommentAdded, n.Action)
	assert.False(t, n.Read)
	assert.True(t, n.ExpiresAt.After(n.CreatedAt))
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	user := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	require.NoError(t, svc.Notify(ctx, user, actor, ActionFriendRequest, "alice", nil))
	require.NoError(t, svc.Notify(ctx, user, actor, ActionReactionAdded, "❤️", nil))
	require.NoError(t, svc.Notify(ctx, primitive.NewObjectID(), actor, ActionFriendRequest, "alice", nil))

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, svc.MarkAsRead(ctx, user, store.notifs[0].ID))
	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAllAsRead(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	user := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, user, actor, ActionCommentAdded, "hey", nil))
	}

	require.NoError(t, svc.MarkAllAsRead(ctx, user))

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, 3, store.markCalls, "one update per item")
}

func TestMarkAllAsReadPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{failAfter: 2}
	svc := NewNotificationService(store, realtime.NewHub())

	user := primitive.NewObjectID()
	actor := primitive.NewObjectID()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, user, actor, ActionCommentAdded, "hey", nil))
	}

	// The third per-item update fails. The first two stay marked and the
	// error names the item that did not.
	err := svc.MarkAllAsRead(ctx, user)
	require.Error(t, err)

	count, cerr := svc.UnreadCount(ctx, user)
	require.NoError(t, cerr)
	assert.Equal(t, int64(1), count)
}

func TestDeleteNotification(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	user := primitive.NewObjectID()
	require.NoError(t, svc.Notify(ctx, user, primitive.NewObjectID(), ActionFriendRequest, "alice", nil))

	require.NoError(t, svc.DeleteNotification(ctx, user, store.notifs[0].ID))
	assert.Empty(t, store.notifs)
}

func TestSubscribeUserFeedDeliversOnNotify(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	user := primitive.NewObjectID()
	sub, err := svc.SubscribeUserFeed(ctx, user)
	require.NoError(t, err)
	defer sub.Cancel()

	// Initial snapshot is the empty feed.
	snap := <-sub.C
	initial, ok := snap.Data.([]models.Notification)
	require.True(t, ok)
	assert.Empty(t, initial)

	require.NoError(t, svc.Notify(ctx, user, primitive.NewObjectID(), ActionFriendRequest, "alice", nil))

	snap = <-sub.C
	refreshed, ok := snap.Data.([]models.Notification)
	require.True(t, ok)
	require.Len(t, refreshed, 1)
	assert.Equal(t, ActionFriendRequest, refreshed[0].Action)
}

func TestSubscribeUserFeedIsolation(t *testing.T) {
	ctx := context.Background()
	store := &fakeNotificationStore{}
	svc := NewNotificationService(store, realtime.NewHub())

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	aliceSub, err := svc.SubscribeUserFeed(ctx, alice)
	require.NoError(t, err)
	defer aliceSub.Cancel()
	<-aliceSub.C

	// A notification for bob never reaches alice's channel.
	require.NoError(t, svc.Notify(ctx, bob, primitive.NewObjectID(), ActionCommentAdded, "hey", nil))

	select {
	case snap := <-aliceSub.C:
		t.Fatalf("unexpected snapshot on alice's feed: %+v", snap)
	default:
	}
}
