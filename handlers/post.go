package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"socialbase.com/social-media-be/middleware"
	"socialbase.com/social-media-be/models"
	"socialbase.com/social-media-be/services"
)

func CreatePost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r)

		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			respondError(w, http.StatusBadRequest, "Content is required")
			return
		}

		var p models.Post
		err := db.QueryRow(`
			INSERT INTO posts (user_id, content, created_at)
			VALUES ($1, $2, NOW())
			RETURNING id, user_id, content, created_at`,
			userID, req.Content,
		).Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to create post")
			log.Println("CreatePost error:", err)
			return
		}
		p.Likes = []int{}

		respondJSON(w, http.StatusCreated, p)
	}
}

func GetPost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid post id")
			return
		}

		p, err := fetchPost(db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "Post not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("GetPost error:", err)
			}
			return
		}

		comments, err := loadPostComments(db, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch comments")
			log.Println("GetPost comments error:", err)
			return
		}

		respondJSON(w, http.StatusOK, struct {
			models.Post
			Comments []models.CommentWithUser `json:"comments"`
		}{*p, comments})
	}
}

// GetRecentPosts backs the public feed view: newest posts with author info
// and engagement counters.
func GetRecentPosts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := queryPostsWithCounts(db, `
			SELECT p.id, p.user_id, p.content, p.created_at, p.updated_at,
			       u.username, u.name,
			       COALESCE((SELECT COUNT(*) FROM likes WHERE post_id = p.id), 0) AS like_count,
			       COALESCE((SELECT COUNT(*) FROM comments WHERE post_id = p.id), 0) AS comment_count
			FROM posts p
			JOIN users u ON p.user_id = u.id
			ORDER BY p.created_at DESC
			LIMIT 50`)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch posts")
			log.Println("GetRecentPosts error:", err)
			return
		}

		respondJSON(w, http.StatusOK, posts)
	}
}

func GetPostsByUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.Atoi(mux.Vars(r)["userId"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid userId")
			return
		}

		posts, err := queryPostsWithCounts(db, `
			SELECT p.id, p.user_id, p.content, p.created_at, p.updated_at,
			       u.username, u.name,
			       COALESCE((SELECT COUNT(*) FROM likes WHERE post_id = p.id), 0) AS like_count,
			       COALESCE((SELECT COUNT(*) FROM comments WHERE post_id = p.id), 0) AS comment_count
			FROM posts p
			JOIN users u ON p.user_id = u.id
			WHERE p.user_id = $1
			ORDER BY p.created_at DESC`, userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch posts")
			log.Println("GetPostsByUser error:", err)
			return
		}

		respondJSON(w, http.StatusOK, posts)
	}
}

func UpdatePost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid post id")
			return
		}

		ownerID, err := postOwner(db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "Post not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("UpdatePost owner check error:", err)
			}
			return
		}
		if ownerID != middleware.UserID(r) {
			respondError(w, http.StatusForbidden, "Not authorized")
			return
		}

		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			respondError(w, http.StatusBadRequest, "Content is required")
			return
		}

		var p models.Post
		var updated sql.NullTime
		err = db.QueryRow(`
			UPDATE posts SET content = $1, updated_at = NOW()
			WHERE id = $2
			RETURNING id, user_id, content, created_at, updated_at`,
			req.Content, id,
		).Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &updated)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to update post")
			log.Println("UpdatePost error:", err)
			return
		}
		if updated.Valid {
			p.UpdatedAt = &updated.Time
		}

		likes, err := loadPostLikes(db, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch likes")
			log.Println("UpdatePost likes error:", err)
			return
		}
		p.Likes = likes

		respondJSON(w, http.StatusOK, p)
	}
}

func DeletePost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid post id")
			return
		}

		ownerID, err := postOwner(db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "Post not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("DeletePost owner check error:", err)
			}
			return
		}
		if ownerID != middleware.UserID(r) {
			respondError(w, http.StatusForbidden, "Not authorized")
			return
		}

		// Comments and likes cascade with the post.
		if _, err := db.Exec(`DELETE FROM posts WHERE id = $1`, id); err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete post")
			log.Println("DeletePost error:", err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"message": "Post deleted successfully"})
	}
}

func LikePost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid post id")
			return
		}
		userID := middleware.UserID(r)

		if _, err := postOwner(db, id); err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "Post not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("LikePost owner check error:", err)
			}
			return
		}

		// The unique (post_id, user_id) constraint makes this an atomic
		// set-add: a second like by the same user fails instead of racing.
		_, err = db.Exec(`INSERT INTO likes (post_id, user_id, created_at) VALUES ($1, $2, NOW())`,
			id, userID)
		if err != nil {
			if isUniqueViolation(err) {
				respondError(w, http.StatusBadRequest, "Already liked")
				return
			}
			// The post can vanish between the owner check and the insert.
			if isForeignKeyViolation(err) {
				respondError(w, http.StatusNotFound, "Post not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to like post")
			log.Println("LikePost error:", err)
			return
		}

		go notifyPostOwnerOfLike(db, id, userID)

		p, err := fetchPost(db, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch post")
			log.Println("LikePost fetch error:", err)
			return
		}

		respondJSON(w, http.StatusOK, p)
	}
}

func UnlikePost(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid post id")
			return
		}
		userID := middleware.UserID(r)

		if _, err := postOwner(db, id); err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "Post not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("UnlikePost owner check error:", err)
			}
			return
		}

		res, err := db.Exec(`DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to unlike post")
			log.Println("UnlikePost error:", err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			respondError(w, http.StatusBadRequest, "You haven't liked this post")
			return
		}

		p, err := fetchPost(db, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch post")
			log.Println("UnlikePost fetch error:", err)
			return
		}

		respondJSON(w, http.StatusOK, p)
	}
}

func AddComment(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r)

		var req struct {
			PostID  int    `json:"post_id"`
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.PostID == 0 {
			respondError(w, http.StatusBadRequest, "post_id is required")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			respondError(w, http.StatusBadRequest, "Content is required")
			return
		}

		var c models.Comment
		err := db.QueryRow(`
			INSERT INTO comments (post_id, user_id, content, created_at)
			VALUES ($1, $2, $3, NOW())
			RETURNING id, post_id, user_id, content, created_at`,
			req.PostID, userID, req.Content,
		).Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				respondError(w, http.StatusNotFound, "Post not found")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to create comment")
			log.Println("AddComment error:", err)
			return
		}

		go notifyPostOwnerOfComment(db, req.PostID, userID, req.Content)

		respondJSON(w, http.StatusCreated, c)
	}
}

func postOwner(db *sql.DB, postID int) (int, error) {
	var ownerID int
	err := db.QueryRow(`SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&ownerID)
	return ownerID, err
}

func fetchPost(db *sql.DB, id int) (*models.Post, error) {
	var p models.Post
	var updated sql.NullTime
	err := db.QueryRow(`SELECT id, user_id, content, created_at, updated_at FROM posts WHERE id = $1`, id).
		Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &updated)
	if err != nil {
		return nil, err
	}
	if updated.Valid {
		p.UpdatedAt = &updated.Time
	}

	likes, err := loadPostLikes(db, id)
	if err != nil {
		return nil, err
	}
	p.Likes = likes

	return &p, nil
}

func loadPostLikes(db *sql.DB, postID int) ([]int, error) {
	rows, err := db.Query(`SELECT user_id FROM likes WHERE post_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	likes := []int{}
	for rows.Next() {
		var userID int
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		likes = append(likes, userID)
	}
	return likes, rows.Err()
}

func loadPostComments(db *sql.DB, postID int) ([]models.CommentWithUser, error) {
	rows, err := db.Query(`
		SELECT c.id, c.post_id, c.user_id, c.content, c.created_at,
		       u.username, u.name
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.CommentWithUser{}
	for rows.Next() {
		var c models.CommentWithUser
		if err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content,
			&c.CreatedAt, &c.Username, &c.Name); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func queryPostsWithCounts(db *sql.DB, query string, args ...interface{}) ([]models.PostWithCounts, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []models.PostWithCounts{}
	for rows.Next() {
		var p models.PostWithCounts
		var updated sql.NullTime
		if err := rows.Scan(&p.ID, &p.UserID, &p.Content, &p.CreatedAt, &updated,
			&p.Username, &p.Name, &p.LikeCount, &p.CommentCount); err != nil {
			return nil, err
		}
		if updated.Valid {
			p.UpdatedAt = &updated.Time
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func notifyPostOwnerOfLike(db *sql.DB, postID, likerID int) {
	if !services.NotificationsEnabled() {
		return
	}

	var ownerID int
	var postContent string
	err := db.QueryRow(`SELECT user_id, content FROM posts WHERE id = $1`, postID).
		Scan(&ownerID, &postContent)
	if err != nil {
		log.Printf("Error fetching post for like notification: %v", err)
		return
	}
	if ownerID == likerID {
		return
	}

	likerName := displayName(db, likerID)
	tokens, err := userTokens(db, ownerID)
	if err != nil || len(tokens) == 0 {
		return
	}

	title := fmt.Sprintf("%s liked your post", likerName)
	data := map[string]string{
		"type":     "post_like",
		"post_id":  strconv.Itoa(postID),
		"liker_id": strconv.Itoa(likerID),
	}

	if _, _, err := services.SendMultipleNotifications(db, tokens, title, truncate(postContent, 100), data); err != nil {
		log.Printf("Error sending like notification: %v", err)
	}
}

func notifyPostOwnerOfComment(db *sql.DB, postID, commenterID int, commentContent string) {
	if !services.NotificationsEnabled() {
		return
	}

	var ownerID int
	err := db.QueryRow(`SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&ownerID)
	if err != nil {
		log.Printf("Error fetching post for comment notification: %v", err)
		return
	}
	if ownerID == commenterID {
		return
	}

	commenterName := displayName(db, commenterID)
	tokens, err := userTokens(db, ownerID)
	if err != nil || len(tokens) == 0 {
		return
	}

	title := fmt.Sprintf("%s commented on your post", commenterName)
	data := map[string]string{
		"type":         "post_comment",
		"post_id":      strconv.Itoa(postID),
		"commenter_id": strconv.Itoa(commenterID),
	}

	if _, _, err := services.SendMultipleNotifications(db, tokens, title, truncate(commentContent, 100), data); err != nil {
		log.Printf("Error sending comment notification: %v", err)
	}
}

func displayName(db *sql.DB, userID int) string {
	var name string
	if err := db.QueryRow(`SELECT name FROM users WHERE id = $1`, userID).Scan(&name); err != nil {
		log.Printf("Error fetching user name for notification: %v", err)
		return "Someone"
	}
	return name
}

func userTokens(db *sql.DB, userID int) ([]string, error) {
	rows, err := db.Query(`
		SELECT token FROM fcm_tokens
		WHERE user_id = $1 AND token != ''`, userID)
	if err != nil {
		log.Printf("Error fetching FCM tokens: %v", err)
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
