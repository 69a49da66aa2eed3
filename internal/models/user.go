package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a profile in the users collection. Identity (sign-in,
// sessions) lives in the external provider; this document only mirrors the
// profile plus the relationship state the engine manages.
type User struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	DisplayName      string               `bson:"display_name" json:"display_name"`
	Email            string               `bson:"email" json:"email"`
	Avatar           string               `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Bio              string               `bson:"bio,omitempty" json:"bio,omitempty"`
	Friends          []primitive.ObjectID `bson:"friends,omitempty" json:"friends,omitempty"`
	RequestsSent     []primitive.ObjectID `bson:"requests_sent,omitempty" json:"requests_sent,omitempty"`
	RequestsReceived []primitive.ObjectID `bson:"requests_received,omitempty" json:"requests_received,omitempty"`
	CreatedAt        time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `bson:"updated_at" json:"updated_at"`
}

type PublicUser struct {
	ID          primitive.ObjectID `json:"id"`
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	Avatar      string             `json:"avatar,omitempty"`
}

// Public strips relationship state down to what other users may see.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Avatar:      u.Avatar,
	}
}

// HasFriend reports whether id is already in the user's friends set.
func (u *User) HasFriend(id primitive.ObjectID) bool {
	return containsID(u.Friends, id)
}

// HasPendingWith reports whether a pending request exists between the user
// and id, in either direction.
func (u *User) HasPendingWith(id primitive.ObjectID) bool {
	return containsID(u.RequestsSent, id) || containsID(u.RequestsReceived, id)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
