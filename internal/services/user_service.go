package services

import (
	"context"
	"errors"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrEmptyDisplayName = errors.New("display name is required")

// profileStore is the slice of the user repository the profile service
// depends on.
type profileStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, updates bson.M) error
}

var _ profileStore = (*repository.UserRepository)(nil)

// UserService manages the profile documents mirroring the external identity
// provider. It never authenticates; it only stores what the identity
// context supplies.
type UserService struct {
	userRepo profileStore
}

// NewUserService creates a new UserService.
func NewUserService(userRepo profileStore) *UserService {
	return &UserService{userRepo: userRepo}
}

// CreateProfile stores a new profile document for an authenticated identity.
func (s *UserService) CreateProfile(ctx context.Context, displayName, email, avatar, bio string) (*models.User, error) {
	if displayName == "" {
		return nil, ErrEmptyDisplayName
	}

	user := &models.User{
		DisplayName: displayName,
		Email:       email,
		Avatar:      avatar,
		Bio:         bio,
	}
	return s.userRepo.CreateUser(ctx, user)
}

// GetUser returns a user document by id.
func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.userRepo.GetUserByID(ctx, id)
}

// UpdateProfile merge-patches the mutable profile fields.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error {
	allowed := map[string]bool{"display_name": true, "avatar": true, "bio": true}
	patch := bson.M{}
	for k, v := range updates {
		if allowed[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return nil
	}
	return s.userRepo.UpdateProfile(ctx, id, patch)
}
