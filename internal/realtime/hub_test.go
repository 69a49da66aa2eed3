package realtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	hub := NewHub()

	sub, err := hub.Subscribe(context.Background(), "t1", func(ctx context.Context) (interface{}, error) {
		return []string{"a", "b"}, nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	snap := <-sub.C
	assert.Equal(t, "t1", snap.Topic)
	assert.Equal(t, []string{"a", "b"}, snap.Data)
}

func TestSubscribeLoaderFailure(t *testing.T) {
	hub := NewHub()

	_, err := hub.Subscribe(context.Background(), "t1", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("store unavailable")
	})
	assert.Error(t, err)
}

func TestPublishRedeliversFullResultSet(t *testing.T) {
	hub := NewHub()
	state := []int{1}

	sub, err := hub.Subscribe(context.Background(), "t1", func(ctx context.Context) (interface{}, error) {
		snapshot := make([]int, len(state))
		copy(snapshot, state)
		return snapshot, nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	<-sub.C // initial

	state = append(state, 2)
	hub.Publish(context.Background(), "t1")

	snap := <-sub.C
	assert.Equal(t, []int{1, 2}, snap.Data)
}

func TestPublishReachesOnlyMatchingTopic(t *testing.T) {
	hub := NewHub()

	sub, err := hub.Subscribe(context.Background(), "t1", func(ctx context.Context) (interface{}, error) {
		return "data", nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	<-sub.C // initial

	hub.Publish(context.Background(), "other-topic")

	select {
	case snap := <-sub.C:
		t.Fatalf("unexpected snapshot delivered: %+v", snap)
	default:
	}
}

func TestCancelClosesChannelSynchronously(t *testing.T) {
	hub := NewHub()

	sub, err := hub.Subscribe(context.Background(), "t1", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	require.NoError(t, err)

	sub.Cancel()

	// Drain the initial snapshot; the channel must then report closed.
	<-sub.C
	_, open := <-sub.C
	assert.False(t, open, "Cancel must close the snapshot channel before returning")

	// Publishing after cancel must not panic or deliver
	hub.Publish(context.Background(), "t1")

	// Cancel is idempotent
	sub.Cancel()
}

func TestIndependentSubscriptionsOnSameTopic(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	loader := func(ctx context.Context) (interface{}, error) { return "snap", nil }

	s1, err := hub.Subscribe(ctx, "t1", loader)
	require.NoError(t, err)
	s2, err := hub.Subscribe(ctx, "t1", loader)
	require.NoError(t, err)
	defer s2.Cancel()

	<-s1.C
	<-s2.C

	// Cancelling one listener must not stop delivery to the other
	s1.Cancel()
	hub.Publish(ctx, "t1")

	snap := <-s2.C
	assert.Equal(t, "snap", snap.Data)
}

func TestTopicNames(t *testing.T) {
	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	assert.Equal(t, "group:"+groupID.Hex()+":posts", GroupPostsTopic(groupID))
	assert.Equal(t, "user:"+userID.Hex()+":notifications", UserNotificationsTopic(userID))
}
