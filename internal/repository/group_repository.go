package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrGroupNotFound is returned for point reads and invite-code lookups that
// match nothing.
var ErrGroupNotFound = errors.New("group not found")

// GroupRepository handles database operations on group documents.
type GroupRepository struct {
	collection *mongo.Collection
}

// NewGroupRepository creates a new instance of GroupRepository.
func NewGroupRepository(db *mongo.Database) *GroupRepository {
	return &GroupRepository{
		collection: db.Collection("groups"),
	}
}

// CreateGroup inserts a new group document.
func (r *GroupRepository) CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	group.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, group)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert group into database")
		return nil, fmt.Errorf("failed to insert group: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	group.ID = insertedID

	logrus.WithField("groupID", group.ID.Hex()).Info("Group inserted successfully")
	return group, nil
}

// GetGroupByID retrieves a group by its ID.
func (r *GroupRepository) GetGroupByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var group models.Group
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group by id: %v", err)
	}
	return &group, nil
}

// GetGroupByInviteCode resolves an invite code to its group. The code is
// assumed to identify exactly one group at redemption time.
func (r *GroupRepository) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	var group models.Group
	err := r.collection.FindOne(ctx, bson.M{"invite_code": code}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group by invite code: %v", err)
	}
	return &group, nil
}

// InviteCodeExists reports whether any group currently holds the code.
func (r *GroupRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"invite_code": code})
	if err != nil {
		return false, fmt.Errorf("failed to check invite code: %v", err)
	}
	return count > 0, nil
}

// GetGroupsByMember returns every group where userID holds a membership
// record.
func (r *GroupRepository) GetGroupsByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"members.user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch groups for user: %v", err)
	}
	defer cursor.Close(ctx)

	var groups []models.Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %v", err)
	}
	return groups, nil
}

// SetMembers writes the full member roster back. Callers compute the new
// roster from their last-known snapshot; concurrent roster edits follow
// last-writer-wins.
func (r *GroupRepository) SetMembers(ctx context.Context, id primitive.ObjectID, members []models.GroupMember) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"members": members}},
	)
	if err != nil {
		return fmt.Errorf("failed to update group members: %v", err)
	}
	return nil
}

// UpdateGroup merge-patches arbitrary group fields.
func (r *GroupRepository) UpdateGroup(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update group: %v", err)
	}
	return nil
}

// DeleteGroup removes the group document.
func (r *GroupRepository) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete group: %v", err)
	}
	logrus.WithField("groupID", id.Hex()).Info("Group deleted successfully")
	return nil
}
