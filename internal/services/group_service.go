package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/repository"
	"github.com/memora-app/memora-server/pkg/blob"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyGroupName     = errors.New("group name is required")
	ErrInvalidInviteCode  = errors.New("invalid invite code")
	ErrNotGroupMember     = errors.New("user is not a member of this group")
	ErrNotGroupAdmin      = errors.New("only a group admin may perform this action")
	ErrInvitationNotYours = errors.New("invitation is not addressed to this user")
	ErrInvitationSettled  = errors.New("invitation has already been responded to")
	ErrInvitationPending  = errors.New("an invitation for this user is already pending")
)

const inviteCodeAttempts = 5

// groupStore is the slice of the group repository the manager depends on.
type groupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error)
	GetGroupByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error)
	GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	GetGroupsByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error)
	SetMembers(ctx context.Context, id primitive.ObjectID, members []models.GroupMember) error
	UpdateGroup(ctx context.Context, id primitive.ObjectID, updates bson.M) error
	DeleteGroup(ctx context.Context, id primitive.ObjectID) error
}

// invitationStore is the slice of the invitation repository the manager
// depends on.
type invitationStore interface {
	CreateInvitation(ctx context.Context, inv *models.GroupInvitation) (*models.GroupInvitation, error)
	GetInvitationByID(ctx context.Context, id primitive.ObjectID) (*models.GroupInvitation, error)
	GetPendingByUser(ctx context.Context, userID primitive.ObjectID) ([]models.GroupInvitation, error)
	HasPending(ctx context.Context, groupID, toUserID primitive.ObjectID) (bool, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error
}

// postPurger cascades a group deletion into its posts.
type postPurger interface {
	DeletePostsByGroup(ctx context.Context, groupID primitive.ObjectID) error
}

var (
	_ groupStore      = (*repository.GroupRepository)(nil)
	_ invitationStore = (*repository.InvitationRepository)(nil)
	_ postPurger      = (*repository.PostRepository)(nil)
)

// GroupService manages group lifecycle, invite codes and the membership
// roster. Roster writes are whole-list write-backs computed from the
// caller's last-known snapshot.
type GroupService struct {
	groupRepo      groupStore
	invitationRepo invitationStore
	postRepo       postPurger
	notifService   notifier
	uploader       blob.Uploader
}

// NewGroupService creates a new GroupService.
func NewGroupService(
	groupRepo groupStore,
	invitationRepo invitationStore,
	postRepo postPurger,
	notifService notifier,
	uploader blob.Uploader,
) *GroupService {
	return &GroupService{
		groupRepo:      groupRepo,
		invitationRepo: invitationRepo,
		postRepo:       postRepo,
		notifService:   notifService,
		uploader:       uploader,
	}
}

// GenerateInviteCode returns a uniformly random 6-digit numeric string in
// [100000, 999999]. Uniqueness against existing groups is enforced at
// issuance by the retry loop in CreateGroup, not here.
func GenerateInviteCode() string {
	return fmt.Sprintf("%d", 100000+rand.Intn(900000))
}

// CreateGroup uploads the optional cover image, issues an invite code and
// persists the group with the creator as its sole admin.
func (s *GroupService) CreateGroup(ctx context.Context, name, description string, userID primitive.ObjectID, coverImage []byte) (*models.Group, error) {
	if name == "" {
		return nil, ErrEmptyGroupName
	}

	coverURL := ""
	if len(coverImage) > 0 {
		url, err := s.uploader.Upload(ctx, coverImage, "group-cover-"+uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("cover upload failed: %w", err)
		}
		coverURL = url
	}

	code, err := s.issueInviteCode(ctx)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:        name,
		Description: description,
		CoverPhoto:  coverURL,
		CreatedBy:   userID,
		InviteCode:  code,
		Members: []models.GroupMember{
			{UserID: userID, Role: models.RoleAdmin, JoinedAt: time.Now()},
		},
		Settings: models.GroupSettings{IsPublic: false},
	}

	return s.groupRepo.CreateGroup(ctx, group)
}

// issueInviteCode draws random codes until one is unused, within a bounded
// number of attempts.
func (s *GroupService) issueInviteCode(ctx context.Context) (string, error) {
	for i := 0; i < inviteCodeAttempts; i++ {
		code := GenerateInviteCode()
		exists, err := s.groupRepo.InviteCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("code", code).Warn("Invite code collision, retrying")
	}
	return "", fmt.Errorf("could not issue a unique invite code after %d attempts", inviteCodeAttempts)
}

// JoinGroupByCode redeems an invite code for a member-role seat.
func (s *GroupService) JoinGroupByCode(ctx context.Context, code string, userID primitive.ObjectID) (*models.Group, error) {
	if code == "" {
		return nil, ErrInvalidInviteCode
	}

	group, err := s.groupRepo.GetGroupByInviteCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, ErrInvalidInviteCode
		}
		return nil, err
	}

	if err := group.AddMember(userID, models.RoleMember, time.Now()); err != nil {
		return nil, err
	}
	if err := s.groupRepo.SetMembers(ctx, group.ID, group.Members); err != nil {
		return nil, err
	}

	logrus.Infof("User %s joined group %s by invite code", userID.Hex(), group.ID.Hex())
	return group, nil
}

// InviteToGroup creates a pending invitation driving code-less group entry.
func (s *GroupService) InviteToGroup(ctx context.Context, groupID, fromUserID, toUserID primitive.ObjectID) (*models.GroupInvitation, error) {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(fromUserID) {
		return nil, ErrNotGroupMember
	}
	if group.IsMember(toUserID) {
		return nil, models.ErrAlreadyMember
	}

	pending, err := s.invitationRepo.HasPending(ctx, groupID, toUserID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrInvitationPending
	}

	inv, err := s.invitationRepo.CreateInvitation(ctx, &models.GroupInvitation{
		GroupID:    groupID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.notifService.Notify(ctx, toUserID, fromUserID, ActionGroupInvitation, group.Name, &groupID); err != nil {
		logrus.WithError(err).Warn("Failed to notify group invitation")
	}
	return inv, nil
}

// AcceptGroupInvitation appends the membership record, then marks the
// invitation accepted. The two writes are not transactional: a failure after
// the roster write leaves the invitation pending while the user is already a
// member.
func (s *GroupService) AcceptGroupInvitation(ctx context.Context, invitationID, userID primitive.ObjectID) error {
	inv, err := s.invitationRepo.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.ToUserID != userID {
		return ErrInvitationNotYours
	}
	if inv.Status != models.InvitationPending {
		return ErrInvitationSettled
	}

	group, err := s.groupRepo.GetGroupByID(ctx, inv.GroupID)
	if err != nil {
		return err
	}

	if err := group.AddMember(userID, models.RoleMember, time.Now()); err == nil {
		if err := s.groupRepo.SetMembers(ctx, group.ID, group.Members); err != nil {
			return err
		}
	}

	if err := s.invitationRepo.UpdateStatus(ctx, invitationID, models.InvitationAccepted); err != nil {
		return fmt.Errorf("membership added but invitation still pending: %v", err)
	}
	return nil
}

// RejectGroupInvitation marks the invitation rejected without touching the
// roster.
func (s *GroupService) RejectGroupInvitation(ctx context.Context, invitationID, userID primitive.ObjectID) error {
	inv, err := s.invitationRepo.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.ToUserID != userID {
		return ErrInvitationNotYours
	}
	if inv.Status != models.InvitationPending {
		return ErrInvitationSettled
	}

	return s.invitationRepo.UpdateStatus(ctx, invitationID, models.InvitationRejected)
}

// LeaveGroup filters the user out of the roster.
func (s *GroupService) LeaveGroup(ctx context.Context, groupID, userID primitive.ObjectID) error {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsMember(userID) {
		return ErrNotGroupMember
	}

	group.RemoveMember(userID)
	return s.groupRepo.SetMembers(ctx, group.ID, group.Members)
}

// DeleteGroup removes the group and purges its posts. Only an admin of the
// group may delete it.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID, actorID primitive.ObjectID) error {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return ErrNotGroupAdmin
	}

	if err := s.groupRepo.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	if err := s.postRepo.DeletePostsByGroup(ctx, groupID); err != nil {
		return fmt.Errorf("group deleted but posts not fully purged: %v", err)
	}
	return nil
}

// UpdateGroupSettings merge-patches settings fields; only admins may change
// them.
func (s *GroupService) UpdateGroupSettings(ctx context.Context, groupID, actorID primitive.ObjectID, updates map[string]interface{}) error {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.IsAdmin(actorID) {
		return ErrNotGroupAdmin
	}

	patch := bson.M{}
	for k, v := range updates {
		patch[k] = v
	}
	return s.groupRepo.UpdateGroup(ctx, groupID, patch)
}

// GetGroup returns a single group; only members may read it.
func (s *GroupService) GetGroup(ctx context.Context, groupID, userID primitive.ObjectID) (*models.Group, error) {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) && !group.Settings.IsPublic {
		return nil, ErrNotGroupMember
	}
	return group, nil
}

// GetUserGroups returns every group the user belongs to.
func (s *GroupService) GetUserGroups(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	return s.groupRepo.GetGroupsByMember(ctx, userID)
}

// GetPendingInvitations returns invitations awaiting the user's response.
func (s *GroupService) GetPendingInvitations(ctx context.Context, userID primitive.ObjectID) ([]models.GroupInvitation, error) {
	return s.invitationRepo.GetPendingByUser(ctx, userID)
}
