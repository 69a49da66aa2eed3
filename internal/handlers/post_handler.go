package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/memora-app/memora-server/internal/models"
	"github.com/memora-app/memora-server/internal/services"
	"github.com/memora-app/memora-server/pkg/logger"
	"github.com/memora-app/memora-server/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostHandler manages HTTP endpoints for the post & reaction engine.
type PostHandler struct {
	Service *services.PostService
}

// NewPostHandler initializes a new PostHandler.
func NewPostHandler(service *services.PostService) *PostHandler {
	return &PostHandler{Service: service}
}

// CreatePostHandler creates a post from a multipart form. Text fields:
// content, tags, location, tagged_users and an optional poll (JSON); image
// payloads arrive as "images" files and are uploaded before any store write.
func (h *PostHandler) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}
	authorID, _ := primitive.ObjectIDFromHex(claims.UserID)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	input := services.CreatePostInput{
		Content:  r.FormValue("content"),
		Location: r.FormValue("location"),
	}

	if tags := r.FormValue("tags"); tags != "" {
		if err := json.Unmarshal([]byte(tags), &input.Tags); err != nil {
			http.Error(w, "Invalid tags payload", http.StatusBadRequest)
			return
		}
	}

	if tagged := r.FormValue("tagged_users"); tagged != "" {
		var hexIDs []string
		if err := json.Unmarshal([]byte(tagged), &hexIDs); err != nil {
			http.Error(w, "Invalid tagged_users payload", http.StatusBadRequest)
			return
		}
		for _, hex := range hexIDs {
			id, err := primitive.ObjectIDFromHex(hex)
			if err != nil {
				http.Error(w, "Invalid tagged user ID", http.StatusBadRequest)
				return
			}
			input.TaggedUsers = append(input.TaggedUsers, id)
		}
	}

	if pollJSON := r.FormValue("poll"); pollJSON != "" {
		var poll services.PollInput
		if err := json.Unmarshal([]byte(pollJSON), &poll); err != nil {
			http.Error(w, "Invalid poll payload", http.StatusBadRequest)
			return
		}
		input.Poll = &poll
	}

	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			file, err := header.Open()
			if err != nil {
				http.Error(w, "Failed to read image", http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				http.Error(w, "Failed to read image", http.StatusBadRequest)
				return
			}
			input.Images = append(input.Images, data)
		}
	}

	post, err := h.Service.CreatePost(r.Context(), groupID, authorID, input)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrNotGroupMember) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		logger.Log.Warnf("Failed to create post in group %s: %v", groupID.Hex(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(post)
}

// GetGroupFeedHandler returns the group's posts, newest first.
func (h *PostHandler) GetGroupFeedHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	posts, err := h.Service.GetGroupPosts(r.Context(), groupID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrNotGroupMember) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(posts)
}

// AddReactionHandler toggles the caller's reaction under an emoji.
func (h *PostHandler) AddReactionHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	var body struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Emoji == "" {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	post, err := h.Service.AddReaction(r.Context(), postID, body.Emoji, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		logger.Log.Warnf("Failed to toggle reaction on post %s: %v", postID.Hex(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// AddCommentHandler appends a comment to a post.
func (h *PostHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	authorID, _ := primitive.ObjectIDFromHex(claims.UserID)

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	comment, err := h.Service.AddComment(r.Context(), postID, authorID, body.Text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(comment)
}

// ToggleFavoriteHandler flips the caller's favorite on a post.
func (h *PostHandler) ToggleFavoriteHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	if err := h.Service.ToggleFavorite(r.Context(), postID, userID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Favorite toggled"})
}

// VoteInPollHandler records an exclusive-choice vote.
func (h *PostHandler) VoteInPollHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	var body struct {
		OptionID string `json:"option_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	post, err := h.Service.VoteInPoll(r.Context(), postID, body.OptionID, userID)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrNoSuchOption) || errors.Is(err, models.ErrNoPoll) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		logger.Log.Warnf("Failed to vote in poll on post %s: %v", postID.Hex(), err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(post)
}

// UpdatePostHandler merge-patches a post's content fields.
func (h *PostHandler) UpdatePostHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	var updates map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid update payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.Service.UpdatePost(r.Context(), postID, userID, updates); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrNotPostAuthor) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Post updated"})
}

// DeletePostHandler removes a post.
func (h *PostHandler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	userID, _ := primitive.ObjectIDFromHex(claims.UserID)

	if err := h.Service.DeletePost(r.Context(), postID, userID); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, services.ErrNotPostAuthor) {
			status = http.StatusForbidden
		}
		http.Error(w, err.Error(), status)
		logger.Log.Warnf("Failed to delete post %s: %v", postID.Hex(), err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"message": "Post deleted"})
}
