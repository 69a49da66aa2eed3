package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/memora-app/memora-server/internal/realtime"
	"github.com/memora-app/memora-server/internal/services"
	jwtutil "github.com/memora-app/memora-server/pkg/jwt"
	"github.com/memora-app/memora-server/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedHandler bridges hub subscriptions to websocket clients. One connection
// carries one subscription; closing the connection cancels it, so stale
// listeners never accumulate when the client switches scope.
type FeedHandler struct {
	PostService  *services.PostService
	NotifService *services.NotificationService
	JWTSecret    string
}

// NewFeedHandler initializes a new FeedHandler.
func NewFeedHandler(postService *services.PostService, notifService *services.NotificationService, jwtSecret string) *FeedHandler {
	return &FeedHandler{
		PostService:  postService,
		NotifService: notifService,
		JWTSecret:    jwtSecret,
	}
}

func (h *FeedHandler) authenticate(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}

	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		logger.Log.Warnf("WebSocket auth failed: %v", err)
		return primitive.NilObjectID, false
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid token subject", http.StatusUnauthorized)
		return primitive.NilObjectID, false
	}
	return userID, true
}

// GroupFeedSocketHandler streams full post-list snapshots for one group
// until the client disconnects.
func (h *FeedHandler) GroupFeedSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	groupID, err := primitive.ObjectIDFromHex(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid group ID", http.StatusBadRequest)
		return
	}

	sub, err := h.PostService.SubscribeGroupFeed(r.Context(), groupID, userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		logger.Log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	h.pump(conn, sub)
}

// NotificationSocketHandler streams the caller's notification list.
func (h *FeedHandler) NotificationSocketHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	sub, err := h.NotifService.SubscribeUserFeed(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to subscribe", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		logger.Log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	h.pump(conn, sub)
}

// pump writes snapshots to the socket until either side goes away. The read
// loop only watches for the client closing.
func (h *FeedHandler) pump(conn *websocket.Conn, sub *realtime.Subscription) {
	defer conn.Close()
	defer sub.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, open := <-sub.C:
			if !open {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger.Log.Debugf("WebSocket write failed: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
