package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHasPendingWith(t *testing.T) {
	other := primitive.NewObjectID()
	third := primitive.NewObjectID()

	sent := &User{RequestsSent: []primitive.ObjectID{other}}
	assert.True(t, sent.HasPendingWith(other))
	assert.False(t, sent.HasPendingWith(third))

	received := &User{RequestsReceived: []primitive.ObjectID{other}}
	assert.True(t, received.HasPendingWith(other))
}

func TestHasFriend(t *testing.T) {
	friend := primitive.NewObjectID()
	user := &User{Friends: []primitive.ObjectID{friend}}

	assert.True(t, user.HasFriend(friend))
	assert.False(t, user.HasFriend(primitive.NewObjectID()))
}

func TestPublicStripsRelationshipState(t *testing.T) {
	user := &User{
		ID:               primitive.NewObjectID(),
		DisplayName:      "Aida",
		Email:            "aida@example.com",
		Friends:          []primitive.ObjectID{primitive.NewObjectID()},
		RequestsReceived: []primitive.ObjectID{primitive.NewObjectID()},
	}

	pub := user.Public()
	assert.Equal(t, user.ID, pub.ID)
	assert.Equal(t, "Aida", pub.DisplayName)
}
