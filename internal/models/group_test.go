package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAddMemberUniqueness(t *testing.T) {
	creator := primitive.NewObjectID()
	joiner := primitive.NewObjectID()
	group := &Group{
		Name:       "Camp",
		CreatedBy:  creator,
		InviteCode: "482913",
		Members: []GroupMember{
			{UserID: creator, Role: RoleAdmin, JoinedAt: time.Now()},
		},
	}

	require.NoError(t, group.AddMember(joiner, RoleMember, time.Now()))
	require.Len(t, group.Members, 2)
	assert.Equal(t, RoleAdmin, group.Members[0].Role)
	assert.Equal(t, RoleMember, group.Members[1].Role)
	assert.Equal(t, joiner, group.Members[1].UserID)

	// Redemption by an existing member must not duplicate the entry
	err := group.AddMember(joiner, RoleMember, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.Len(t, group.Members, 2)
}

func TestRemoveMember(t *testing.T) {
	admin := primitive.NewObjectID()
	member := primitive.NewObjectID()
	group := &Group{Members: []GroupMember{
		{UserID: admin, Role: RoleAdmin},
		{UserID: member, Role: RoleMember},
	}}

	group.RemoveMember(member)
	require.Len(t, group.Members, 1)
	assert.Equal(t, admin, group.Members[0].UserID)

	// Removing a non-member is a no-op
	group.RemoveMember(member)
	assert.Len(t, group.Members, 1)
}

func TestMemberRoles(t *testing.T) {
	admin := primitive.NewObjectID()
	member := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	group := &Group{Members: []GroupMember{
		{UserID: admin, Role: RoleAdmin},
		{UserID: member, Role: RoleMember},
	}}

	assert.True(t, group.IsAdmin(admin))
	assert.False(t, group.IsAdmin(member))
	assert.False(t, group.IsAdmin(outsider))
	assert.True(t, group.IsMember(member))
	assert.False(t, group.IsMember(outsider))
}
