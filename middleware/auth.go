package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"socialbase.com/social-media-be/services"
)

type contextKey string

const userIDKey contextKey = "user_id"

// RequireAuth guards routes that need a known actor. It reads the session
// token from the "token" cookie, verifies it and stores the user id in the
// request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("token")
		if err != nil || cookie.Value == "" {
			unauthorized(w, "Not authenticated")
			return
		}

		userID, err := services.VerifyToken(cookie.Value)
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID attaches an authenticated user id to the context.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the user id set by RequireAuth, or 0 when the request was
// not authenticated.
func UserID(r *http.Request) int {
	id, _ := r.Context().Value(userIDKey).(int)
	return id
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
