package routes

import (
	"database/sql"

	"github.com/gorilla/mux"
	"socialbase.com/social-media-be/handlers"
	"socialbase.com/social-media-be/middleware"
)

func CreatePostRoutes(db *sql.DB, router *mux.Router) *mux.Router {
	// The frontend uses the trailing-slash form of the collection URL. Both
	// spellings answer directly; a redirect would drop the POST body.
	router.Handle("/posts/", middleware.RequireAuth(handlers.CreatePost(db))).Methods("POST")
	router.Handle("/posts", middleware.RequireAuth(handlers.CreatePost(db))).Methods("POST")
	router.HandleFunc("/posts/", handlers.GetRecentPosts(db)).Methods("GET")
	router.HandleFunc("/posts", handlers.GetRecentPosts(db)).Methods("GET")
	router.Handle("/posts/comment", middleware.RequireAuth(handlers.AddComment(db))).Methods("POST")
	router.HandleFunc("/posts/user/{userId}", handlers.GetPostsByUser(db)).Methods("GET")
	router.HandleFunc("/posts/{id}", handlers.GetPost(db)).Methods("GET")
	router.Handle("/posts/{id}", middleware.RequireAuth(handlers.UpdatePost(db))).Methods("PUT")
	router.Handle("/posts/{id}", middleware.RequireAuth(handlers.DeletePost(db))).Methods("DELETE")
	router.Handle("/posts/{id}/like", middleware.RequireAuth(handlers.LikePost(db))).Methods("POST")
	router.Handle("/posts/{id}/unlike", middleware.RequireAuth(handlers.UnlikePost(db))).Methods("POST")

	return router
}
