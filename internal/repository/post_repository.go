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
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrPostNotFound = errors.New("post not found")

// PostRepository handles database operations on post documents. Comments are
// embedded in the post, so deleting a post removes them with it.
type PostRepository struct {
	collection *mongo.Collection
}

// NewPostRepository creates a new instance of PostRepository.
func NewPostRepository(db *mongo.Database) *PostRepository {
	return &PostRepository{
		collection: db.Collection("posts"),
	}
}

// CreatePost inserts a new post document.
func (r *PostRepository) CreatePost(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt

	result, err := r.collection.InsertOne(ctx, post)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert post into database")
		return nil, fmt.Errorf("failed to insert post: %v", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("failed to cast inserted ID")
	}
	post.ID = insertedID

	logrus.WithField("postID", post.ID.Hex()).Info("Post inserted successfully")
	return post, nil
}

// GetPostByID retrieves a post by its ID.
func (r *PostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to find post by id: %v", err)
	}
	return &post, nil
}

// GetPostsByGroup returns the group's feed, newest first.
func (r *PostRepository) GetPostsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Post, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{"group_id": groupID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %v", err)
	}
	defer cursor.Close(ctx)

	var posts []models.Post
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %v", err)
	}
	return posts, nil
}

// SetReactions writes the full reactions map back. The map was computed from
// the caller's last-known snapshot; concurrent toggles on the same post can
// overwrite each other since this is not field-scoped per emoji.
func (r *PostRepository) SetReactions(ctx context.Context, id primitive.ObjectID, reactions map[string][]primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"reactions": reactions, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update reactions: %v", err)
	}
	return nil
}

// PushComment appends a comment to the embedded list, preserving order.
func (r *PostRepository) PushComment(ctx context.Context, id primitive.ObjectID, comment models.Comment) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$push": bson.M{"comments": comment},
			"$set":  bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to append comment: %v", err)
	}
	return nil
}

// AddFavorite adds userID to the favorites set.
func (r *PostRepository) AddFavorite(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"favorites": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to add favorite: %v", err)
	}
	return nil
}

// RemoveFavorite removes userID from the favorites set.
func (r *PostRepository) RemoveFavorite(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"favorites": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %v", err)
	}
	return nil
}

// SetPoll writes the full poll back after a vote was applied to the caller's
// snapshot.
func (r *PostRepository) SetPoll(ctx context.Context, id primitive.ObjectID, poll *models.Poll) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"poll": poll, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update poll: %v", err)
	}
	return nil
}

// UpdatePost merge-patches arbitrary post fields.
func (r *PostRepository) UpdatePost(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	updates["updated_at"] = time.Now()
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return fmt.Errorf("failed to update post: %v", err)
	}
	return nil
}

// DeletePost removes the post document together with its embedded comments.
func (r *PostRepository) DeletePost(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete post: %v", err)
	}
	logrus.WithField("postID", id.Hex()).Info("Post deleted successfully")
	return nil
}

// DeletePostsByGroup purges every post belonging to a deleted group.
func (r *PostRepository) DeletePostsByGroup(ctx context.Context, groupID primitive.ObjectID) error {
	result, err := r.collection.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return fmt.Errorf("failed to delete group posts: %v", err)
	}
	logrus.Infof("Deleted %d posts for group %s", result.DeletedCount, groupID.Hex())
	return nil
}
