package handlers

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"socialbase.com/social-media-be/middleware"
	"socialbase.com/social-media-be/models"
	"socialbase.com/social-media-be/services"
)

func FollowUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followingID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		followerID := middleware.UserID(r)

		if followingID == followerID {
			respondError(w, http.StatusBadRequest, "Cannot follow yourself")
			return
		}

		var exists bool
		err = db.QueryRow(`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, followingID).Scan(&exists)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database query failed")
			log.Println("FollowUser exists check error:", err)
			return
		}
		if !exists {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}

		_, err = db.Exec(`
			INSERT INTO follows (follower_id, following_id, created_at)
			VALUES ($1, $2, NOW())`,
			followerID, followingID)
		if err != nil {
			if isUniqueViolation(err) {
				respondError(w, http.StatusConflict, "Already following this user")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to follow user")
			log.Println("FollowUser error:", err)
			return
		}

		go notifyNewFollower(db, followerID, followingID)

		respondJSON(w, http.StatusCreated, map[string]string{"message": "Successfully followed user"})
	}
}

func UnfollowUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followingID, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		followerID := middleware.UserID(r)

		res, err := db.Exec(`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
			followerID, followingID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to unfollow user")
			log.Println("UnfollowUser error:", err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			respondError(w, http.StatusBadRequest, "Not following this user")
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"message": "Successfully unfollowed user"})
	}
}

func GetUserFollowers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}

		users, err := queryFollowUsers(db, `
			SELECT u.id, u.username, u.name, u.email, u.bio, u.website, u.avatar_url, u.created_at
			FROM follows f
			JOIN users u ON f.follower_id = u.id
			WHERE f.following_id = $1
			ORDER BY f.created_at DESC`, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch followers")
			log.Println("GetUserFollowers error:", err)
			return
		}

		respondJSON(w, http.StatusOK, users)
	}
}

func GetUserFollowing(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}

		users, err := queryFollowUsers(db, `
			SELECT u.id, u.username, u.name, u.email, u.bio, u.website, u.avatar_url, u.created_at
			FROM follows f
			JOIN users u ON f.following_id = u.id
			WHERE f.follower_id = $1
			ORDER BY f.created_at DESC`, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch following")
			log.Println("GetUserFollowing error:", err)
			return
		}

		respondJSON(w, http.StatusOK, users)
	}
}

func queryFollowUsers(db *sql.DB, query string, args ...interface{}) ([]models.User, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Email,
			&u.Bio, &u.Website, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func notifyNewFollower(db *sql.DB, followerID, followingID int) {
	if !services.NotificationsEnabled() {
		return
	}

	followerName := displayName(db, followerID)
	tokens, err := userTokens(db, followingID)
	if err != nil || len(tokens) == 0 {
		return
	}

	title := fmt.Sprintf("%s started following you", followerName)
	data := map[string]string{
		"type":        "new_follower",
		"follower_id": strconv.Itoa(followerID),
	}

	if _, _, err := services.SendMultipleNotifications(db, tokens, title, "", data); err != nil {
		log.Printf("Error sending follow notification: %v", err)
	}
}
