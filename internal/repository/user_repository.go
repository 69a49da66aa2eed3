package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository handles database operations on user documents, including
// the relationship arrays (friends, requests sent/received).
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user profile into the database.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("failed to insert user: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	user.ID = insertedID

	logrus.WithField("userID", user.ID.Hex()).Info("User inserted successfully")
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id.Hex(),
			"error":  err,
		}).Warn("Failed to find user by ID")
		return nil, fmt.Errorf("failed to find user by id: %v", err)
	}
	return &user, nil
}

// GetUsersByIDs fetches user details for a list of ObjectIDs.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users by IDs: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}

// SearchUsers matches the term against display name or email,
// case-insensitively.
func (r *UserRepository) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	filter := bson.M{"$or": []bson.M{
		{"display_name": bson.M{"$regex": term, "$options": "i"}},
		{"email": bson.M{"$regex": term, "$options": "i"}},
	}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %v", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %v", err)
	}
	return users, nil
}

// UpdateProfile merge-patches profile fields on a user document.
func (r *UserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update user: %v", err)
	}
	return nil
}

// The relationship mutations below are each atomic on a single user
// document. Operations spanning both sides of a pair issue two of these in
// sequence with no transaction across them; a failure of the second write
// leaves an asymmetric state that the caller surfaces but cannot undo.

// MarkRequestSent records an outgoing friend request on the sender.
func (r *UserRepository) MarkRequestSent(ctx context.Context, userID, otherID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"requests_sent": otherID}},
	)
	if err != nil {
		return fmt.Errorf("failed to record sent request: %v", err)
	}
	return nil
}

// MarkRequestReceived records an incoming friend request on the receiver.
func (r *UserRepository) MarkRequestReceived(ctx context.Context, userID, otherID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"requests_received": otherID}},
	)
	if err != nil {
		return fmt.Errorf("failed to record received request: %v", err)
	}
	return nil
}

// AcceptIncoming adds requesterID to the user's friends and clears the
// matching received request in one document update.
func (r *UserRepository) AcceptIncoming(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"friends": requesterID},
			"$pull":     bson.M{"requests_received": requesterID},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to accept request on receiver: %v", err)
	}
	return nil
}

// AcceptOutgoing adds accepterID to the requester's friends and clears the
// matching sent request in one document update.
func (r *UserRepository) AcceptOutgoing(ctx context.Context, userID, accepterID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$addToSet": bson.M{"friends": accepterID},
			"$pull":     bson.M{"requests_sent": accepterID},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to accept request on sender: %v", err)
	}
	return nil
}

// ClearIncomingRequest drops a pending received request without creating a
// friend edge.
func (r *UserRepository) ClearIncomingRequest(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"requests_received": requesterID}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear received request: %v", err)
	}
	return nil
}

// ClearOutgoingRequest drops a pending sent request without creating a
// friend edge.
func (r *UserRepository) ClearOutgoingRequest(ctx context.Context, userID, otherID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"requests_sent": otherID}},
	)
	if err != nil {
		return fmt.Errorf("failed to clear sent request: %v", err)
	}
	return nil
}

// PullFriend removes friendID from the user's friends set.
func (r *UserRepository) PullFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"friends": friendID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove friend from user %s: %v", userID.Hex(), err)
	}
	return nil
}
