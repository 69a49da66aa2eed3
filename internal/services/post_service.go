package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/realtime"
	"github.com/memora-app/memora-server/internal/repository"
	"github.com/memora-app/memora-server/pkg/blob"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrEmptyPost        = errors.New("post must have content, images or a poll")
	ErrEmptyComment     = errors.New("comment text is required")
	ErrNotPostAuthor    = errors.New("only the author or a group admin may delete this post")
	ErrPollNeedsOptions = errors.New("a poll needs at least two options")
)

// PollInput describes a new poll attached to a post.
type PollInput struct {
	Question string
	Options  []string
	ClosesAt *time.Time
}

// CreatePostInput carries everything a new post may hold. Image payloads are
// uploaded to the blob store before any database write.
type CreatePostInput struct {
	Content     string
	Images      [][]byte
	Poll        *PollInput
	Tags        []string
	TaggedUsers []primitive.ObjectID
	Location    string
}

// postStore is the slice of the post repository the engine depends on.
type postStore interface {
	CreatePost(ctx context.Context, post *models.Post) (*models.Post, error)
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	GetPostsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error)
	SetReactions(ctx context.Context, id primitive.ObjectID, reactions map[string][]primitive.ObjectID) error
	PushComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) error
	AddFavorite(ctx context.Context, id, userID primitive.ObjectID) error
	RemoveFavorite(ctx context.Context, id, userID primitive.ObjectID) error
	SetPoll(ctx context.Context, id primitive.ObjectID, poll *models.Poll) error
	UpdatePost(ctx context.Context, id primitive.ObjectID, updates bson.M) error
	DeletePost(ctx context.Context, id primitive.ObjectID) error
}

// groupReader resolves a post's group for membership and role checks.
type groupReader interface {
	GetGroupByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error)
}

var (
	_ postStore   = (*repository.PostRepository)(nil)
	_ groupReader = (*repository.GroupRepository)(nil)
)

// PostService is the post & reaction engine: lifecycle, toggle semantics,
// exclusive-choice voting and comment append, plus the group feed
// subscription.
type PostService struct {
	postRepo     postStore
	groupRepo    groupReader
	notifService notifier
	uploader     blob.Uploader
	hub          *realtime.Hub
}

// NewPostService creates a new PostService.
func NewPostService(
	postRepo postStore,
	groupRepo groupReader,
	notifService notifier,
	uploader blob.Uploader,
	hub *realtime.Hub,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		groupRepo:    groupRepo,
		notifService: notifService,
		uploader:     uploader,
		hub:          hub,
	}
}

// CreatePost uploads images sequentially, derives the post type and inserts
// the document. Any single upload failure aborts the whole creation; the
// post is never partially created.
func (s *PostService) CreatePost(ctx context.Context, groupID, authorID primitive.ObjectID, input CreatePostInput) (*models.Post, error) {
	if input.Content == "" && len(input.Images) == 0 && input.Poll == nil {
		return nil, ErrEmptyPost
	}

	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(authorID) {
		return nil, ErrNotGroupMember
	}

	imageURLs := make([]string, 0, len(input.Images))
	for _, img := range input.Images {
		url, err := s.uploader.Upload(ctx, img, "post-"+uuid.NewString())
		if err != nil {
			return nil, fmt.Errorf("image upload failed: %w", err)
		}
		imageURLs = append(imageURLs, url)
	}

	poll, err := buildPoll(input.Poll)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		GroupID:     groupID,
		AuthorID:    authorID,
		Type:        models.DerivePostType(len(imageURLs), poll),
		Content:     input.Content,
		Images:      imageURLs,
		Poll:        poll,
		Reactions:   map[string][]primitive.ObjectID{},
		Comments:    []models.Comment{},
		Tags:        input.Tags,
		TaggedUsers: input.TaggedUsers,
		Location:    input.Location,
		Favorites:   []primitive.ObjectID{},
	}

	created, err := s.postRepo.CreatePost(ctx, post)
	if err != nil {
		return nil, err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(groupID))

	for _, tagged := range input.TaggedUsers {
		if tagged == authorID {
			continue
		}
		if err := s.notifService.Notify(ctx, tagged, authorID, ActionUserTagged, group.Name, &created.ID); err != nil {
			logrus.WithError(err).Warn("Failed to notify tagged user")
		}
	}

	return created, nil
}

func buildPoll(input *PollInput) (*models.Poll, error) {
	if input == nil {
		return nil, nil
	}
	if len(input.Options) < 2 {
		return nil, ErrPollNeedsOptions
	}

	options := make([]models.PollOption, 0, len(input.Options))
	for _, text := range input.Options {
		options = append(options, models.PollOption{
			ID:    uuid.NewString(),
			Text:  text,
			Votes: []primitive.ObjectID{},
		})
	}
	return &models.Poll{Question: input.Question, Options: options, ClosesAt: input.ClosesAt}, nil
}

// AddReaction toggles userID under emoji on the post's last-known snapshot
// and writes the full reactions map back. Two concurrent toggles on the same
// post can overwrite each other; the last write wins.
func (s *PostService) AddReaction(ctx context.Context, postID primitive.ObjectID, emoji string, userID primitive.ObjectID) (*models.Post, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	wasSet := containsObjectID(post.Reactions[emoji], userID)
	post.ToggleReaction(emoji, userID)

	if err := s.postRepo.SetReactions(ctx, postID, post.Reactions); err != nil {
		return nil, err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))

	if !wasSet && post.AuthorID != userID {
		if err := s.notifService.Notify(ctx, post.AuthorID, userID, ActionReactionAdded, emoji, &post.ID); err != nil {
			logrus.WithError(err).Warn("Failed to notify reaction")
		}
	}

	return post, nil
}

// AddComment appends a comment with a fresh id and timestamp. Prior comments
// are never dropped and read order stays ascending by creation time.
func (s *PostService) AddComment(ctx context.Context, postID, authorID primitive.ObjectID, text string) (*models.Comment, error) {
	if text == "" {
		return nil, ErrEmptyComment
	}

	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := s.postRepo.PushComment(ctx, postID, comment); err != nil {
		return nil, err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))

	if post.AuthorID != authorID {
		if err := s.notifService.Notify(ctx, post.AuthorID, authorID, ActionCommentAdded, text, &post.ID); err != nil {
			logrus.WithError(err).Warn("Failed to notify comment")
		}
	}

	return &comment, nil
}

// ToggleFavorite flips userID's membership in the post's favorites set.
// Applying it twice returns the set to its original state.
func (s *PostService) ToggleFavorite(ctx context.Context, postID, userID primitive.ObjectID) error {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.HasFavorite(userID) {
		err = s.postRepo.RemoveFavorite(ctx, postID, userID)
	} else {
		err = s.postRepo.AddFavorite(ctx, postID, userID)
	}
	if err != nil {
		return err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))
	return nil
}

// VoteInPoll applies an exclusive-choice vote to the poll snapshot and
// writes the poll back. The user's previous vote, if any, is purged first.
func (s *PostService) VoteInPoll(ctx context.Context, postID primitive.ObjectID, optionID string, userID primitive.ObjectID) (*models.Post, error) {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := post.Vote(optionID, userID, time.Now()); err != nil {
		return nil, err
	}
	if err := s.postRepo.SetPoll(ctx, postID, post.Poll); err != nil {
		return nil, err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))
	return post, nil
}

// UpdatePost merge-patches the mutable content fields of a post.
func (s *PostService) UpdatePost(ctx context.Context, postID, actorID primitive.ObjectID, updates map[string]interface{}) error {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return ErrNotPostAuthor
	}

	allowed := map[string]bool{"content": true, "tags": true, "location": true}
	patch := bson.M{}
	for k, v := range updates {
		if allowed[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		return nil
	}

	if err := s.postRepo.UpdatePost(ctx, postID, patch); err != nil {
		return err
	}
	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))
	return nil
}

// DeletePost removes the post document; embedded comments go with it. The
// author or a group admin may delete.
func (s *PostService) DeletePost(ctx context.Context, postID, actorID primitive.ObjectID) error {
	post, err := s.postRepo.GetPostByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID != actorID {
		group, err := s.groupRepo.GetGroupByID(ctx, post.GroupID)
		if err != nil {
			return err
		}
		if !group.IsAdmin(actorID) {
			return ErrNotPostAuthor
		}
	}

	if err := s.postRepo.DeletePost(ctx, postID); err != nil {
		return err
	}

	s.hub.Publish(ctx, realtime.GroupPostsTopic(post.GroupID))
	return nil
}

// GetGroupPosts returns the group's feed, newest first; only members may
// read it.
func (s *PostService) GetGroupPosts(ctx context.Context, groupID, userID primitive.ObjectID) ([]models.Post, error) {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) && !group.Settings.IsPublic {
		return nil, ErrNotGroupMember
	}
	return s.postRepo.GetPostsByGroup(ctx, groupID)
}

// SubscribeGroupFeed opens a live subscription on the group's post list for
// a member. The caller must call Cancel when the selected group changes.
func (s *PostService) SubscribeGroupFeed(ctx context.Context, groupID, userID primitive.ObjectID) (*realtime.Subscription, error) {
	group, err := s.groupRepo.GetGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(userID) && !group.Settings.IsPublic {
		return nil, ErrNotGroupMember
	}

	topic := realtime.GroupPostsTopic(groupID)
	return s.hub.Subscribe(ctx, topic, func(ctx context.Context) (interface{}, error) {
		return s.postRepo.GetPostsByGroup(ctx, groupID)
	})
}
