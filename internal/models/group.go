package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

var ErrAlreadyMember = errors.New("user is already a member of this group")

// GroupMember binds a user to a group with a role. At most one entry per
// user id may exist in a group's Members slice.
type GroupMember struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     string             `bson:"role" json:"role"`
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

type GroupSettings struct {
	IsPublic bool `bson:"is_public" json:"is_public"`
}

// Group represents a shared memory space. The invite code is a 6-digit
// numeric string issued at creation.
type Group struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CoverPhoto  string             `bson:"cover_photo,omitempty" json:"cover_photo,omitempty"`
	CreatedBy   primitive.ObjectID `bson:"created_by" json:"created_by"`
	InviteCode  string             `bson:"invite_code" json:"invite_code"`
	Members     []GroupMember      `bson:"members" json:"members"`
	Settings    GroupSettings      `bson:"settings" json:"settings"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// Member returns the membership record for userID, if any.
func (g *Group) Member(userID primitive.ObjectID) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return GroupMember{}, false
}

// IsMember reports whether userID holds a membership record.
func (g *Group) IsMember(userID primitive.ObjectID) bool {
	_, ok := g.Member(userID)
	return ok
}

// IsAdmin reports whether userID holds the admin role.
func (g *Group) IsAdmin(userID primitive.ObjectID) bool {
	m, ok := g.Member(userID)
	return ok && m.Role == RoleAdmin
}

// AddMember appends a membership record, preserving the at-most-one-entry
// invariant. Joining twice fails rather than duplicating.
func (g *Group) AddMember(userID primitive.ObjectID, role string, joinedAt time.Time) error {
	if g.IsMember(userID) {
		return ErrAlreadyMember
	}
	g.Members = append(g.Members, GroupMember{UserID: userID, Role: role, JoinedAt: joinedAt})
	return nil
}

// RemoveMember filters userID out of the roster. Removing a non-member is a
// no-op.
func (g *Group) RemoveMember(userID primitive.ObjectID) {
	filtered := g.Members[:0]
	for _, m := range g.Members {
		if m.UserID != userID {
			filtered = append(filtered, m)
		}
	}
	g.Members = filtered
}
