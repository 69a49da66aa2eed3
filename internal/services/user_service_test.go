package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeProfileStore struct {
	users   map[primitive.ObjectID]*models.User
	patches []bson.M
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (s *fakeProfileStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = primitive.NewObjectID()
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeProfileStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to find user by id: %s", id.Hex())
	}
	return u, nil
}

func (s *fakeProfileStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	s.patches = append(s.patches, updates)
	for k, v := range updates {
		u := s.users[id]
		switch k {
		case "display_name":
			u.DisplayName = v.(string)
		case "avatar":
			u.Avatar = v.(string)
		case "bio":
			u.Bio = v.(string)
		}
	}
	return nil
}

func TestCreateProfile(t *testing.T) {
	store := newFakeProfileStore()
	svc := NewUserService(store)

	user, err := svc.CreateProfile(context.Background(), "alice", "alice@example.com", "", "hi")
	require.NoError(t, err)
	assert.False(t, user.ID.IsZero())
	assert.Equal(t, "alice", user.DisplayName)
	assert.Len(t, store.users, 1)
}

func TestCreateProfileRequiresDisplayName(t *testing.T) {
	svc := NewUserService(newFakeProfileStore())

	_, err := svc.CreateProfile(context.Background(), "", "alice@example.com", "", "")
	assert.ErrorIs(t, err, ErrEmptyDisplayName)
}

func TestUpdateProfileFiltersFields(t *testing.T) {
	ctx := context.Background()
	store := newFakeProfileStore()
	svc := NewUserService(store)

	user, err := svc.CreateProfile(ctx, "alice", "alice@example.com", "", "")
	require.NoError(t, err)

	err = svc.UpdateProfile(ctx, user.ID, map[string]interface{}{
		"bio":     "hello",
		"friends": []string{"injected"},
		"email":   "evil@example.com",
	})
	require.NoError(t, err)

	require.Len(t, store.patches, 1)
	assert.Equal(t, bson.M{"bio": "hello"}, store.patches[0])
	assert.Equal(t, "alice@example.com", store.users[user.ID].Email)
}

func TestUpdateProfileNoAllowedFieldsIsNoop(t *testing.T) {
	store := newFakeProfileStore()
	svc := NewUserService(store)

	err := svc.UpdateProfile(context.Background(), primitive.NewObjectID(), map[string]interface{}{
		"friends": []string{"injected"},
	})
	require.NoError(t, err)
	assert.Empty(t, store.patches)
}
