package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memora-app/memora-server/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrInvitationNotFound = errors.New("invitation not found")

// InvitationRepository handles database operations on group invitations.
type InvitationRepository struct {
	collection *mongo.Collection
}

// NewInvitationRepository creates a new instance of InvitationRepository.
func NewInvitationRepository(db *mongo.Database) *InvitationRepository {
	return &InvitationRepository{
		collection: db.Collection("group_invitations"),
	}
}

// CreateInvitation inserts a new pending invitation.
func (r *InvitationRepository) CreateInvitation(ctx context.Context, inv *models.GroupInvitation) (*models.GroupInvitation, error) {
	inv.Status = models.InvitationPending
	inv.CreatedAt = time.Now()

	result, err := r.collection.InsertOne(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invitation: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	inv.ID = insertedID
	return inv, nil
}

// GetInvitationByID retrieves an invitation by its ID.
func (r *InvitationRepository) GetInvitationByID(ctx context.Context, id primitive.ObjectID) (*models.GroupInvitation, error) {
	var inv models.GroupInvitation
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&inv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to find invitation: %v", err)
	}
	return &inv, nil
}

// GetPendingByUser returns all pending invitations addressed to userID.
func (r *InvitationRepository) GetPendingByUser(ctx context.Context, userID primitive.ObjectID) ([]models.GroupInvitation, error) {
	filter := bson.M{"to_user_id": userID, "status": models.InvitationPending}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find invitations: %v", err)
	}
	defer cursor.Close(ctx)

	var invitations []models.GroupInvitation
	if err := cursor.All(ctx, &invitations); err != nil {
		return nil, fmt.Errorf("failed to decode invitations: %v", err)
	}
	return invitations, nil
}

// HasPending reports whether a pending invitation already exists for the
// (group, recipient) pair.
func (r *InvitationRepository) HasPending(ctx context.Context, groupID, toUserID primitive.ObjectID) (bool, error) {
	filter := bson.M{"group_id": groupID, "to_user_id": toUserID, "status": models.InvitationPending}
	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check pending invitation: %v", err)
	}
	return count > 0, nil
}

// UpdateStatus moves an invitation to accepted or rejected.
func (r *InvitationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %v", err)
	}
	return nil
}
