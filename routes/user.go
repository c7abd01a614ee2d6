package routes

import (
	"database/sql"

	"github.com/gorilla/mux"
	"socialbase.com/social-media-be/handlers"
	"socialbase.com/social-media-be/middleware"
)

func CreateUserRoutes(db *sql.DB, router *mux.Router) *mux.Router {

	router.HandleFunc("/users/register", handlers.Register(db)).Methods("POST")
	router.HandleFunc("/users/login", handlers.Login(db)).Methods("POST")
	router.HandleFunc("/users/logout", handlers.Logout()).Methods("POST")
	router.Handle("/users/me", middleware.RequireAuth(handlers.GetCurrentUser(db))).Methods("GET")
	router.HandleFunc("/users/search", handlers.SearchUsers(db)).Methods("GET")
	router.Handle("/users/fcm-token", middleware.RequireAuth(handlers.RegisterFCMToken(db))).Methods("POST")
	router.HandleFunc("/users/{id}", handlers.GetUserById(db)).Methods("GET")
	router.Handle("/users/{id}", middleware.RequireAuth(handlers.UpdateUser(db))).Methods("PUT")
	router.Handle("/users/{id}", middleware.RequireAuth(handlers.DeleteUser(db))).Methods("DELETE")

	router.Handle("/users/{id}/follow", middleware.RequireAuth(handlers.FollowUser(db))).Methods("POST")
	router.Handle("/users/{id}/follow", middleware.RequireAuth(handlers.UnfollowUser(db))).Methods("DELETE")
	router.HandleFunc("/users/{id}/followers", handlers.GetUserFollowers(db)).Methods("GET")
	router.HandleFunc("/users/{id}/following", handlers.GetUserFollowing(db)).Methods("GET")

	return router
}
