package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/memora-app/memora-server/internal/config"
	"github.com/memora-app/memora-server/internal/database"
	"github.com/memora-app/memora-server/internal/handlers"
	"github.com/memora-app/memora-server/internal/realtime"
	"github.com/memora-app/memora-server/internal/repository"
	"github.com/memora-app/memora-server/internal/scheduler"
	"github.com/memora-app/memora-server/internal/services"
	"github.com/memora-app/memora-server/pkg/blob"
	"github.com/memora-app/memora-server/pkg/logger"
	"github.com/memora-app/memora-server/pkg/middleware"
	"github.com/rs/cors"
)

func main() {
	// Load configuration from .env file
	cfg := config.LoadConfig()

	logger.InitLogger()
	logger.Log.Info("Logger initialized")

	// Connect to MongoDB
	db, err := database.ConnectDB(cfg)
	if err != nil {
		log.Fatalf("Database connection error: %v", err)
	}

	uploader := blob.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryUploadPreset)
	hub := realtime.NewHub()

	// --- Repositories ---
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	invitationRepo := repository.NewInvitationRepository(db)
	postRepo := repository.NewPostRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// --- Services ---
	notificationService := services.NewNotificationService(notificationRepo, hub)
	userService := services.NewUserService(userRepo)
	friendService := services.NewFriendService(userRepo, notificationService)
	groupService := services.NewGroupService(groupRepo, invitationRepo, postRepo, notificationService, uploader)
	postService := services.NewPostService(postRepo, groupRepo, notificationService, uploader, hub)

	// --- Handlers ---
	userHandler := handlers.NewUserHandler(userService)
	friendHandler := handlers.NewFriendHandler(friendService)
	groupHandler := handlers.NewGroupHandler(groupService)
	postHandler := handlers.NewPostHandler(postService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	feedHandler := handlers.NewFeedHandler(postService, notificationService, cfg.JWTSecret)

	// Initialize Gorilla Mux router
	router := mux.NewRouter()

	// User routes
	protectedUserRoutes := router.PathPrefix("/users").Subrouter()
	protectedUserRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedUserRoutes.HandleFunc("/profile", userHandler.CreateProfileHandler).Methods("POST")
	protectedUserRoutes.HandleFunc("/search", friendHandler.SearchUsersHandler).Methods("GET")
	protectedUserRoutes.HandleFunc("/{id}", userHandler.GetUserHandler).Methods("GET")
	protectedUserRoutes.HandleFunc("/{id}", userHandler.UpdateProfileHandler).Methods("PATCH")

	// Friend routes
	protectedFriendRoutes := router.PathPrefix("/friends").Subrouter()
	protectedFriendRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedFriendRoutes.HandleFunc("/{id}/request", friendHandler.SendFriendRequestHandler).Methods("POST")
	protectedFriendRoutes.HandleFunc("/{id}/respond", friendHandler.RespondToFriendRequestHandler).Methods("POST")
	protectedFriendRoutes.HandleFunc("/requests", friendHandler.GetPendingRequestsHandler).Methods("GET")
	protectedFriendRoutes.HandleFunc("", friendHandler.GetFriendsHandler).Methods("GET")
	protectedFriendRoutes.HandleFunc("/{id}", friendHandler.RemoveFriendHandler).Methods("DELETE")

	// Group routes
	protectedGroupRoutes := router.PathPrefix("/groups").Subrouter()
	protectedGroupRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedGroupRoutes.HandleFunc("", groupHandler.CreateGroupHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("", groupHandler.GetMyGroupsHandler).Methods("GET")
	protectedGroupRoutes.HandleFunc("/join", groupHandler.JoinByCodeHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("/invitations", groupHandler.GetMyInvitationsHandler).Methods("GET")
	protectedGroupRoutes.HandleFunc("/invitations/{id}/respond", groupHandler.RespondToInvitationHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("/{id}", groupHandler.GetGroupHandler).Methods("GET")
	protectedGroupRoutes.HandleFunc("/{id}", groupHandler.DeleteGroupHandler).Methods("DELETE")
	protectedGroupRoutes.HandleFunc("/{id}/settings", groupHandler.UpdateGroupSettingsHandler).Methods("PATCH")
	protectedGroupRoutes.HandleFunc("/{id}/invite", groupHandler.InviteToGroupHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("/{id}/leave", groupHandler.LeaveGroupHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("/{id}/posts", postHandler.CreatePostHandler).Methods("POST")
	protectedGroupRoutes.HandleFunc("/{id}/posts", postHandler.GetGroupFeedHandler).Methods("GET")

	// Post routes
	protectedPostRoutes := router.PathPrefix("/posts").Subrouter()
	protectedPostRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedPostRoutes.HandleFunc("/{id}/reactions", postHandler.AddReactionHandler).Methods("POST")
	protectedPostRoutes.HandleFunc("/{id}/comments", postHandler.AddCommentHandler).Methods("POST")
	protectedPostRoutes.HandleFunc("/{id}/favorite", postHandler.ToggleFavoriteHandler).Methods("POST")
	protectedPostRoutes.HandleFunc("/{id}/vote", postHandler.VoteInPollHandler).Methods("POST")
	protectedPostRoutes.HandleFunc("/{id}", postHandler.UpdatePostHandler).Methods("PATCH")
	protectedPostRoutes.HandleFunc("/{id}", postHandler.DeletePostHandler).Methods("DELETE")

	// Notification routes
	protectedNotifRoutes := router.PathPrefix("/notifications").Subrouter()
	protectedNotifRoutes.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	protectedNotifRoutes.HandleFunc("", notificationHandler.GetNotificationsHandler).Methods("GET")
	protectedNotifRoutes.HandleFunc("/read-all", notificationHandler.MarkAllAsReadHandler).Methods("POST")
	protectedNotifRoutes.HandleFunc("/{id}/read", notificationHandler.MarkAsReadHandler).Methods("POST")
	protectedNotifRoutes.HandleFunc("/{id}", notificationHandler.DeleteNotificationHandler).Methods("DELETE")

	// Live subscription endpoints (token auth via query param)
	router.HandleFunc("/ws/groups/{id}/feed", feedHandler.GroupFeedSocketHandler)
	router.HandleFunc("/ws/notifications", feedHandler.NotificationSocketHandler)

	// Apply middleware for logging
	router.Use(middleware.LoggingMiddleware)

	// Purge expired notifications daily
	scheduler.StartNotificationCronJobs(notificationService)

	// Start the HTTP server
	port := cfg.Port
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	fmt.Printf("Server running on port %s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
