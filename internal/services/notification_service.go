package services

import (
	"context"
	"fmt"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/realtime"
	"github.com/memora-app/memora-server/internal/repository"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification action names used across the engine.
const (
	ActionFriendRequest   = "friend_request"
	ActionFriendAccepted  = "friend_accepted"
	ActionGroupInvitation = "group_invitation"
	ActionReactionAdded   = "reaction_added"
	ActionCommentAdded    = "comment_added"
	ActionUserTagged      = "user_tagged"
)

// notificationStore is the slice of the repository the service depends on.
type notificationStore interface {
	CreateNotification(ctx context.Context, notif *models.Notification) error
	GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	GetUnreadNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkAsRead(ctx context.Context, id primitive.ObjectID) error
	DeleteNotification(ctx context.Context, id primitive.ObjectID) error
	DeleteExpiredNotifications(ctx context.Context) error
}

var _ notificationStore = (*repository.NotificationRepository)(nil)

// NotificationService handles the derived event records fanned out to
// recipients, plus their live subscription feed.
type NotificationService struct {
	repo notificationStore
	hub  *realtime.Hub
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo notificationStore, hub *realtime.Hub) *NotificationService {
	return &NotificationService{repo: repo, hub: hub}
}

// Notify records an event for a recipient and pushes their refreshed
// notification feed to any live subscribers.
func (s *NotificationService) Notify(ctx context.Context, recipientID, actorID primitive.ObjectID, action, subject string, targetID *primitive.ObjectID) error {
	notif := &models.Notification{
		UserID:   recipientID,
		ActorID:  actorID,
		Action:   action,
		Subject:  subject,
		TargetID: targetID,
	}
	if err := s.repo.CreateNotification(ctx, notif); err != nil {
		return err
	}

	s.hub.Publish(ctx, realtime.UserNotificationsTopic(recipientID))
	return nil
}

// GetUserNotifications returns the user's notifications, newest first.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	return s.repo.GetUserNotifications(ctx, userID)
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead flags a single notification as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notifID primitive.ObjectID) error {
	if err := s.repo.MarkAsRead(ctx, notifID); err != nil {
		return fmt.Errorf("failed to mark notification as read: %v", err)
	}
	s.hub.Publish(ctx, realtime.UserNotificationsTopic(userID))
	return nil
}

// MarkAllAsRead flags every unread notification, one update per item. There
// is no batched atomic write; a mid-sequence failure leaves earlier items
// marked and surfaces the error.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID primitive.ObjectID) error {
	unread, err := s.repo.GetUnreadNotifications(ctx, userID)
	if err != nil {
		return err
	}

	for _, n := range unread {
		if err := s.repo.MarkAsRead(ctx, n.ID); err != nil {
			s.hub.Publish(ctx, realtime.UserNotificationsTopic(userID))
			return fmt.Errorf("failed to mark notification %s as read: %v", n.ID.Hex(), err)
		}
	}

	logrus.WithField("userID", userID.Hex()).Infof("Marked %d notifications as read", len(unread))
	s.hub.Publish(ctx, realtime.UserNotificationsTopic(userID))
	return nil
}

// DeleteNotification deletes a specific notification.
func (s *NotificationService) DeleteNotification(ctx context.Context, userID, notifID primitive.ObjectID) error {
	if err := s.repo.DeleteNotification(ctx, notifID); err != nil {
		return err
	}
	s.hub.Publish(ctx, realtime.UserNotificationsTopic(userID))
	return nil
}

// DeleteExpiredNotifications is called periodically by the cron scheduler.
func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	return s.repo.DeleteExpiredNotifications(ctx)
}

// SubscribeUserFeed opens a live subscription on the user's notification
// list. The caller must call Cancel when its scope ends.
func (s *NotificationService) SubscribeUserFeed(ctx context.Context, userID primitive.ObjectID) (*realtime.Subscription, error) {
	topic := realtime.UserNotificationsTopic(userID)
	return s.hub.Subscribe(ctx, topic, func(ctx context.Context) (interface{}, error) {
		return s.repo.GetUserNotifications(ctx, userID)
	})
}
