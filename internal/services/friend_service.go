package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrRequestExists    = errors.New("a friend request between these users is already pending")
	ErrAlreadyFriends   = errors.New("users are already friends")
	ErrNoPendingRequest = errors.New("no pending friend request from this user")
)

// relationshipStore is the slice of the user repository the state machine
// depends on. Every method is atomic on one user document.
type relationshipStore interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	SearchUsers(ctx context.Context, term string) ([]models.User, error)
	MarkRequestSent(ctx context.Context, userID, otherID primitive.ObjectID) error
	MarkRequestReceived(ctx context.Context, userID, otherID primitive.ObjectID) error
	AcceptIncoming(ctx context.Context, userID, requesterID primitive.ObjectID) error
	AcceptOutgoing(ctx context.Context, userID, accepterID primitive.ObjectID) error
	ClearIncomingRequest(ctx context.Context, userID, requesterID primitive.ObjectID) error
	ClearOutgoingRequest(ctx context.Context, userID, otherID primitive.ObjectID) error
	PullFriend(ctx context.Context, userID, friendID primitive.ObjectID) error
}

var _ relationshipStore = (*repository.UserRepository)(nil)

// notifier decouples event fan-out from the services that trigger it.
type notifier interface {
	Notify(ctx context.Context, recipientID, actorID primitive.ObjectID, action, subject string, targetID *primitive.ObjectID) error
}

// FriendService runs the relationship state machine over the relationship
// arrays embedded in user documents. Every pair operation issues two
// single-document updates with no transaction across them; if the second
// write fails the pair is left asymmetric and the error is surfaced, not
// rolled back.
type FriendService struct {
	userRepo     relationshipStore
	notifService notifier
}

// NewFriendService creates a new FriendService.
func NewFriendService(userRepo relationshipStore, notifService notifier) *FriendService {
	return &FriendService{userRepo: userRepo, notifService: notifService}
}

// SendFriendRequest moves the pair from none to requested(from -> to). It
// rejects self-requests, duplicate pendings in either direction, and pairs
// that are already friends.
func (s *FriendService) SendFriendRequest(ctx context.Context, fromID, toID primitive.ObjectID) error {
	if fromID == toID {
		return ErrSelfRequest
	}

	sender, err := s.userRepo.GetUserByID(ctx, fromID)
	if err != nil {
		return fmt.Errorf("could not load sender: %v", err)
	}
	if _, err := s.userRepo.GetUserByID(ctx, toID); err != nil {
		return fmt.Errorf("could not load recipient: %v", err)
	}

	if sender.HasFriend(toID) {
		return ErrAlreadyFriends
	}
	if sender.HasPendingWith(toID) {
		return ErrRequestExists
	}

	if err := s.userRepo.MarkRequestSent(ctx, fromID, toID); err != nil {
		return err
	}
	if err := s.userRepo.MarkRequestReceived(ctx, toID, fromID); err != nil {
		return fmt.Errorf("request recorded on sender only: %v", err)
	}

	if err := s.notifService.Notify(ctx, toID, fromID, ActionFriendRequest, sender.DisplayName, nil); err != nil {
		logrus.WithError(err).Warn("Failed to notify friend request")
	}

	logrus.Infof("User %s sent a friend request to %s", fromID.Hex(), toID.Hex())
	return nil
}

// AcceptFriendRequest turns a pending request into a symmetric friend edge:
// each side gains the other in friends, and the pending entries are cleared.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("could not load user: %v", err)
	}
	if !containsObjectID(user.RequestsReceived, requesterID) {
		return ErrNoPendingRequest
	}

	if err := s.userRepo.AcceptIncoming(ctx, userID, requesterID); err != nil {
		return err
	}
	if err := s.userRepo.AcceptOutgoing(ctx, requesterID, userID); err != nil {
		return fmt.Errorf("friendship recorded on one side only: %v", err)
	}

	if err := s.notifService.Notify(ctx, requesterID, userID, ActionFriendAccepted, user.DisplayName, nil); err != nil {
		logrus.WithError(err).Warn("Failed to notify accepted request")
	}

	logrus.Infof("User %s accepted friend request from %s", userID.Hex(), requesterID.Hex())
	return nil
}

// RejectFriendRequest clears the pending entries on both sides without
// creating a friend edge.
func (s *FriendService) RejectFriendRequest(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("could not load user: %v", err)
	}
	if !containsObjectID(user.RequestsReceived, requesterID) {
		return ErrNoPendingRequest
	}

	if err := s.userRepo.ClearIncomingRequest(ctx, userID, requesterID); err != nil {
		return err
	}
	if err := s.userRepo.ClearOutgoingRequest(ctx, requesterID, userID); err != nil {
		return fmt.Errorf("request cleared on one side only: %v", err)
	}
	return nil
}

// RemoveFriend removes the edge from both users' friends sets.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	if err := s.userRepo.PullFriend(ctx, userID, friendID); err != nil {
		return err
	}
	if err := s.userRepo.PullFriend(ctx, friendID, userID); err != nil {
		return fmt.Errorf("friendship removed on one side only: %v", err)
	}
	return nil
}

// GetFriends returns public profiles of the user's friends.
func (s *FriendService) GetFriends(ctx context.Context, userID primitive.ObjectID) ([]models.PublicUser, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %v", err)
	}
	return s.publicUsers(ctx, user.Friends)
}

// GetPendingRequests returns public profiles of users whose requests await a
// response.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID primitive.ObjectID) ([]models.PublicUser, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %v", err)
	}
	return s.publicUsers(ctx, user.RequestsReceived)
}

// SearchUsers matches users by display name or email.
func (s *FriendService) SearchUsers(ctx context.Context, term string) ([]models.PublicUser, error) {
	if term == "" {
		return []models.PublicUser{}, nil
	}

	users, err := s.userRepo.SearchUsers(ctx, term)
	if err != nil {
		return nil, err
	}

	results := make([]models.PublicUser, 0, len(users))
	for i := range users {
		results = append(results, users[i].Public())
	}
	return results, nil
}

func (s *FriendService) publicUsers(ctx context.Context, ids []primitive.ObjectID) ([]models.PublicUser, error) {
	if len(ids) == 0 {
		return []models.PublicUser{}, nil
	}

	users, err := s.userRepo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %v", err)
	}

	results := make([]models.PublicUser, 0, len(users))
	for i := range users {
		results = append(results, users[i].Public())
	}
	return results, nil
}

func containsObjectID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
