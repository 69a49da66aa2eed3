package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errStoreDown = errors.New("store unavailable")

// In-memory stand-ins for the mongo repositories. Each mutation mimics the
// single-document update the real repository issues, so the tests observe
// the same partial-write behavior the engine has against the live store.
// failOn maps a method name to an injected error.

type fakeRelationshipStore struct {
	users  map[primitive.ObjectID]*models.User
	failOn map[string]error
}

func newFakeRelationshipStore(users ...*models.User) *fakeRelationshipStore {
	s := &fakeRelationshipStore{
		users:  make(map[primitive.ObjectID]*models.User),
		failOn: make(map[string]error),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeRelationshipStore) fail(method string) error {
	return s.failOn[method]
}

func (s *fakeRelationshipStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := s.fail("GetUserByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to find user by id: %s", id.Hex())
	}
	return u, nil
}

func (s *fakeRelationshipStore) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeRelationshipStore) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out, nil
}

func addToSet(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func pullID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (s *fakeRelationshipStore) MarkRequestSent(ctx context.Context, userID, otherID primitive.ObjectID) error {
	if err := s.fail("MarkRequestSent"); err != nil {
		return err
	}
	u := s.users[userID]
	u.RequestsSent = addToSet(u.RequestsSent, otherID)
	return nil
}

func (s *fakeRelationshipStore) MarkRequestReceived(ctx context.Context, userID, otherID primitive.ObjectID) error {
	if err := s.fail("MarkRequestReceived"); err != nil {
		return err
	}
	u := s.users[userID]
	u.RequestsReceived = addToSet(u.RequestsReceived, otherID)
	return nil
}

func (s *fakeRelationshipStore) AcceptIncoming(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	if err := s.fail("AcceptIncoming"); err != nil {
		return err
	}
	u := s.users[userID]
	u.Friends = addToSet(u.Friends, requesterID)
	u.RequestsReceived = pullID(u.RequestsReceived, requesterID)
	return nil
}

func (s *fakeRelationshipStore) AcceptOutgoing(ctx context.Context, userID, accepterID primitive.ObjectID) error {
	if err := s.fail("AcceptOutgoing"); err != nil {
		return err
	}
	u := s.users[userID]
	u.Friends = addToSet(u.Friends, accepterID)
	u.RequestsSent = pullID(u.RequestsSent, accepterID)
	return nil
}

func (s *fakeRelationshipStore) ClearIncomingRequest(ctx context.Context, userID, requesterID primitive.ObjectID) error {
	if err := s.fail("ClearIncomingRequest"); err != nil {
		return err
	}
	u := s.users[userID]
	u.RequestsReceived = pullID(u.RequestsReceived, requesterID)
	return nil
}

func (s *fakeRelationshipStore) ClearOutgoingRequest(ctx context.Context, userID, otherID primitive.ObjectID) error {
	if err := s.fail("ClearOutgoingRequest"); err != nil {
		return err
	}
	u := s.users[userID]
	u.RequestsSent = pullID(u.RequestsSent, otherID)
	return nil
}

func (s *fakeRelationshipStore) PullFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	if err := s.fail("PullFriend"); err != nil {
		return err
	}
	u := s.users[userID]
	u.Friends = pullID(u.Friends, friendID)
	return nil
}

type notifyCall struct {
	recipientID primitive.ObjectID
	actorID     primitive.ObjectID
	action      string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (n *fakeNotifier) Notify(ctx context.Context, recipientID, actorID primitive.ObjectID, action, subject string, targetID *primitive.ObjectID) error {
	n.calls = append(n.calls, notifyCall{recipientID: recipientID, actorID: actorID, action: action})
	return nil
}

type fakeGroupStore struct {
	groups      map[primitive.ObjectID]*models.Group
	codeTaken   int // number of leading InviteCodeExists calls answered true
	existsCalls int
	failOn      map[string]error
}

func newFakeGroupStore(groups ...*models.Group) *fakeGroupStore {
	s := &fakeGroupStore{
		groups: make(map[primitive.ObjectID]*models.Group),
		failOn: make(map[string]error),
	}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	return s
}

func (s *fakeGroupStore) CreateGroup(ctx context.Context, group *models.Group) (*models.Group, error) {
	if err := s.failOn["CreateGroup"]; err != nil {
		return nil, err
	}
	group.ID = primitive.NewObjectID()
	group.CreatedAt = time.Now()
	s.groups[group.ID] = group
	return group, nil
}

func (s *fakeGroupStore) GetGroupByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	g, ok := s.groups[id]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	clone := *g
	clone.Members = append([]models.GroupMember(nil), g.Members...)
	return &clone, nil
}

func (s *fakeGroupStore) GetGroupByInviteCode(ctx context.Context, code string) (*models.Group, error) {
	for _, g := range s.groups {
		if g.InviteCode == code {
			clone := *g
			clone.Members = append([]models.GroupMember(nil), g.Members...)
			return &clone, nil
		}
	}
	return nil, repository.ErrGroupNotFound
}

func (s *fakeGroupStore) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	s.existsCalls++
	if s.existsCalls <= s.codeTaken {
		return true, nil
	}
	for _, g := range s.groups {
		if g.InviteCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeGroupStore) GetGroupsByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	var out []models.Group
	for _, g := range s.groups {
		if g.IsMember(userID) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *fakeGroupStore) SetMembers(ctx context.Context, id primitive.ObjectID, members []models.GroupMember) error {
	if err := s.failOn["SetMembers"]; err != nil {
		return err
	}
	s.groups[id].Members = members
	return nil
}

func (s *fakeGroupStore) UpdateGroup(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	return s.failOn["UpdateGroup"]
}

func (s *fakeGroupStore) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	delete(s.groups, id)
	return nil
}

type fakeInvitationStore struct {
	invitations map[primitive.ObjectID]*models.GroupInvitation
	failOn      map[string]error
}

func newFakeInvitationStore() *fakeInvitationStore {
	return &fakeInvitationStore{
		invitations: make(map[primitive.ObjectID]*models.GroupInvitation),
		failOn:      make(map[string]error),
	}
}

func (s *fakeInvitationStore) CreateInvitation(ctx context.Context, inv *models.GroupInvitation) (*models.GroupInvitation, error) {
	inv.ID = primitive.NewObjectID()
	inv.Status = models.InvitationPending
	inv.CreatedAt = time.Now()
	s.invitations[inv.ID] = inv
	return inv, nil
}

func (s *fakeInvitationStore) GetInvitationByID(ctx context.Context, id primitive.ObjectID) (*models.GroupInvitation, error) {
	inv, ok := s.invitations[id]
	if !ok {
		return nil, repository.ErrInvitationNotFound
	}
	clone := *inv
	return &clone, nil
}

func (s *fakeInvitationStore) GetPendingByUser(ctx context.Context, userID primitive.ObjectID) ([]models.GroupInvitation, error) {
	var out []models.GroupInvitation
	for _, inv := range s.invitations {
		if inv.ToUserID == userID && inv.Status == models.InvitationPending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (s *fakeInvitationStore) HasPending(ctx context.Context, groupID, toUserID primitive.ObjectID) (bool, error) {
	for _, inv := range s.invitations {
		if inv.GroupID == groupID && inv.ToUserID == toUserID && inv.Status == models.InvitationPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeInvitationStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	if err := s.failOn["UpdateStatus"]; err != nil {
		return err
	}
	s.invitations[id].Status = status
	return nil
}

type fakePostStore struct {
	posts        map[primitive.ObjectID]*models.Post
	purgedGroups []primitive.ObjectID
	failOn       map[string]error
}

func newFakePostStore(posts ...*models.Post) *fakePostStore {
	s := &fakePostStore{
		posts:  make(map[primitive.ObjectID]*models.Post),
		failOn: make(map[string]error),
	}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return s
}

func (s *fakePostStore) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	if err := s.failOn["CreatePost"]; err != nil {
		return nil, err
	}
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	s.posts[post.ID] = post
	return post, nil
}

func (s *fakePostStore) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	clone := *p
	if p.Reactions != nil {
		clone.Reactions = make(map[string][]primitive.ObjectID, len(p.Reactions))
		for emoji, users := range p.Reactions {
			clone.Reactions[emoji] = append([]primitive.ObjectID(nil), users...)
		}
	}
	clone.Favorites = append([]primitive.ObjectID(nil), p.Favorites...)
	clone.Comments = append([]models.Comment(nil), p.Comments...)
	if p.Poll != nil {
		poll := *p.Poll
		poll.Options = make([]models.PollOption, len(p.Poll.Options))
		for i, opt := range p.Poll.Options {
			opt.Votes = append([]primitive.ObjectID(nil), opt.Votes...)
			poll.Options[i] = opt
		}
		clone.Poll = &poll
	}
	return &clone, nil
}

func (s *fakePostStore) GetPostsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error) {
	var out []models.Post
	for _, p := range s.posts {
		if p.GroupID == groupID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *fakePostStore) SetReactions(ctx context.Context, id primitive.ObjectID, reactions map[string][]primitive.ObjectID) error {
	if err := s.failOn["SetReactions"]; err != nil {
		return err
	}
	s.posts[id].Reactions = reactions
	return nil
}

func (s *fakePostStore) PushComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) error {
	s.posts[id].Comments = append(s.posts[id].Comments, comment)
	return nil
}

func (s *fakePostStore) AddFavorite(ctx context.Context, id, userID primitive.ObjectID) error {
	s.posts[id].Favorites = addToSet(s.posts[id].Favorites, userID)
	return nil
}

func (s *fakePostStore) RemoveFavorite(ctx context.Context, id, userID primitive.ObjectID) error {
	s.posts[id].Favorites = pullID(s.posts[id].Favorites, userID)
	return nil
}

func (s *fakePostStore) SetPoll(ctx context.Context, id primitive.ObjectID, poll *models.Poll) error {
	s.posts[id].Poll = poll
	return nil
}

func (s *fakePostStore) UpdatePost(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	return nil
}

func (s *fakePostStore) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	delete(s.posts, id)
	return nil
}

func (s *fakePostStore) DeletePostsByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	s.purgedGroups = append(s.purgedGroups, groupID)
	for id, p := range s.posts {
		if p.GroupID == groupID {
			delete(s.posts, id)
		}
	}
	return nil
}

type fakeUploader struct {
	uploads int
	failAt  int // 1-based index of the upload that fails; 0 means never
}

func (u *fakeUploader) Upload(ctx context.Context, data []byte, name string) (string, error) {
	u.uploads++
	if u.failAt > 0 && u.uploads >= u.failAt {
		return "", errStoreDown
	}
	return fmt.Sprintf("https://cdn.example.com/%s.jpg", name), nil
}

type fakeNotificationStore struct {
	notifs    []*models.Notification
	markCalls int
	failAfter int // fail MarkAsRead once this many calls have succeeded; 0 means never
}

func (s *fakeNotificationStore) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.ID = primitive.NewObjectID()
	notif.Read = false
	notif.CreatedAt = time.Now()
	notif.ExpiresAt = notif.CreatedAt.Add(30 * 24 * time.Hour)
	s.notifs = append(s.notifs, notif)
	return nil
}

func (s *fakeNotificationStore) GetUserNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.notifs {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) GetUnreadNotifications(ctx context.Context, userID primitive.ObjectID) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *fakeNotificationStore) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	var count int64
	for _, n := range s.notifs {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *fakeNotificationStore) MarkAsRead(ctx context.Context, id primitive.ObjectID) error {
	if s.failAfter > 0 && s.markCalls >= s.failAfter {
		return errStoreDown
	}
	s.markCalls++
	for _, n := range s.notifs {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return fmt.Errorf("notification not found")
}

func (s *fakeNotificationStore) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	for i, n := range s.notifs {
		if n.ID == id {
			s.notifs = append(s.notifs[:i], s.notifs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeNotificationStore) DeleteExpiredNotifications(ctx context.Context) error {
	return nil
}
