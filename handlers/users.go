package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"socialbase.com/social-media-be/middleware"
	"socialbase.com/social-media-be/models"
	"socialbase.com/social-media-be/services"
)

var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{3,20}$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func Register(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if !usernameRe.MatchString(req.Username) {
			respondError(w, http.StatusBadRequest,
				"Username must be 3-20 characters: letters, digits, '.', '_' or '-'")
			return
		}
		if !emailRe.MatchString(req.Email) {
			respondError(w, http.StatusBadRequest, "Invalid email address format")
			return
		}
		if req.Name == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "Name and password are required")
			return
		}

		var taken bool
		err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`,
			req.Username, req.Email).Scan(&taken)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database query failed")
			log.Println("Register exists check error:", err)
			return
		}
		if taken {
			respondError(w, http.StatusConflict, "Username or email already exists")
			return
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to hash password")
			return
		}

		u := models.User{Username: req.Username, Name: req.Name, Email: req.Email}
		err = db.QueryRow(`
			INSERT INTO users (username, name, email, password, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, created_at`,
			req.Username, req.Name, req.Email, string(hashed),
		).Scan(&u.ID, &u.CreatedAt)
		if err != nil {
			// The unique constraints stay authoritative under concurrent
			// registrations that pass the existence check.
			if isUniqueViolation(err) {
				respondError(w, http.StatusConflict, "Username or email already exists")
				return
			}
			respondError(w, http.StatusInternalServerError, "Failed to create user")
			log.Println("Register error:", err)
			return
		}

		token, err := services.IssueToken(u.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to issue session token")
			log.Println("Register token error:", err)
			return
		}
		setTokenCookie(w, token)

		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Register successful",
			"user":    u,
		})
	}
}

func Login(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var u models.User
		err := db.QueryRow(`
			SELECT id, username, name, email, password, bio, website, avatar_url, created_at
			FROM users WHERE email = $1`, req.Email).
			Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Password,
				&u.Bio, &u.Website, &u.AvatarURL, &u.CreatedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusBadRequest, "Invalid email or password")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("Login error:", err)
			}
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
			respondError(w, http.StatusBadRequest, "Invalid email or password")
			return
		}

		token, err := services.IssueToken(u.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to issue session token")
			log.Println("Login token error:", err)
			return
		}
		setTokenCookie(w, token)

		u.Password = ""
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Login successful",
			"user":    u,
		})
	}
}

// Logout clears the cookie. Previously issued tokens stay valid until they
// expire; there is no server-side revocation.
func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clearTokenCookie(w)
		respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
	}
}

func GetCurrentUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := fetchUserWithCounts(db, middleware.UserID(r))
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "User not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("GetCurrentUser error:", err)
			}
			return
		}

		respondJSON(w, http.StatusOK, u)
	}
}

func GetUserById(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}

		u, err := fetchUserWithCounts(db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				respondError(w, http.StatusNotFound, "User not found")
			} else {
				respondError(w, http.StatusInternalServerError, "Database query failed")
				log.Println("GetUserById error:", err)
			}
			return
		}

		respondJSON(w, http.StatusOK, u)
	}
}

func UpdateUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		if id != middleware.UserID(r) {
			respondError(w, http.StatusForbidden, "Not authorized")
			return
		}

		var req struct {
			Username  string  `json:"username"`
			Name      string  `json:"name"`
			Email     string  `json:"email"`
			Password  string  `json:"password"`
			Bio       *string `json:"bio"`
			Website   *string `json:"website"`
			AvatarURL *string `json:"avatar_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		setClauses := []string{}
		args := []interface{}{}
		i := 1

		if req.Username != "" {
			if !usernameRe.MatchString(req.Username) {
				respondError(w, http.StatusBadRequest,
					"Username must be 3-20 characters: letters, digits, '.', '_' or '-'")
				return
			}
			setClauses = append(setClauses, "username = $"+strconv.Itoa(i))
			args = append(args, req.Username)
			i++
		}
		if req.Name != "" {
			setClauses = append(setClauses, "name = $"+strconv.Itoa(i))
			args = append(args, req.Name)
			i++
		}
		if req.Email != "" {
			if !emailRe.MatchString(req.Email) {
				respondError(w, http.StatusBadRequest, "Invalid email address format")
				return
			}
			setClauses = append(setClauses, "email = $"+strconv.Itoa(i))
			args = append(args, req.Email)
			i++
		}
		if req.Password != "" {
			hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "Failed to hash password")
				return
			}
			setClauses = append(setClauses, "password = $"+strconv.Itoa(i))
			args = append(args, string(hashed))
			i++
		}
		if req.Bio != nil {
			setClauses = append(setClauses, "bio = $"+strconv.Itoa(i))
			args = append(args, *req.Bio)
			i++
		}
		if req.Website != nil {
			setClauses = append(setClauses, "website = $"+strconv.Itoa(i))
			args = append(args, *req.Website)
			i++
		}
		if req.AvatarURL != nil {
			setClauses = append(setClauses, "avatar_url = $"+strconv.Itoa(i))
			args = append(args, *req.AvatarURL)
			i++
		}

		if len(setClauses) == 0 {
			respondError(w, http.StatusBadRequest, "No fields provided for update")
			return
		}

		sqlStr := "UPDATE users SET " + strings.Join(setClauses, ", ") +
			" WHERE id = $" + strconv.Itoa(i)
		args = append(args, id)

		if _, err := db.Exec(sqlStr, args...); err != nil {
			if isUniqueViolation(err) {
				respondError(w, http.StatusConflict, "Username or email already exists")
				return
			}
			respondError(w, http.StatusInternalServerError, "Database update failed")
			log.Println("UpdateUser error:", err)
			return
		}

		u, err := fetchUserWithCounts(db, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to fetch updated user")
			log.Println("UpdateUser fetch error:", err)
			return
		}

		respondJSON(w, http.StatusOK, u)
	}
}

func DeleteUser(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(mux.Vars(r)["id"])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		if id != middleware.UserID(r) {
			respondError(w, http.StatusForbidden, "Not authorized")
			return
		}

		// Posts, comments, likes and follows go with the account via the
		// schema's ON DELETE CASCADE constraints.
		res, err := db.Exec(`DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to delete user")
			log.Println("DeleteUser error:", err)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}

		clearTokenCookie(w)
		respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
	}
}

func SearchUsers(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			respondJSON(w, http.StatusOK, []models.User{})
			return
		}
		if len(query) > 50 {
			query = query[:50]
		}

		rows, err := db.Query(`
			SELECT id, username, name, email, bio, website, avatar_url, created_at
			FROM users
			WHERE username ILIKE $1
			ORDER BY
				CASE WHEN username ILIKE $2 THEN 0 ELSE 1 END,
				username
			LIMIT 20`,
			"%"+query+"%", query+"%")
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Database search failed")
			log.Println("SearchUsers error:", err)
			return
		}
		defer rows.Close()

		users := []models.User{}
		for rows.Next() {
			var u models.User
			if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Email,
				&u.Bio, &u.Website, &u.AvatarURL, &u.CreatedAt); err != nil {
				respondError(w, http.StatusInternalServerError, "Error scanning search results")
				log.Println("SearchUsers scan error:", err)
				return
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			respondError(w, http.StatusInternalServerError, "Error iterating search results")
			log.Println("SearchUsers rows error:", err)
			return
		}

		respondJSON(w, http.StatusOK, users)
	}
}

func RegisterFCMToken(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" {
			respondError(w, http.StatusBadRequest, "FCM token is required")
			return
		}

		_, err := db.Exec(`
			INSERT INTO fcm_tokens (user_id, token, created_at, updated_at)
			VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (user_id, token)
			DO UPDATE SET updated_at = NOW()`,
			middleware.UserID(r), req.Token)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Failed to register FCM token")
			log.Println("RegisterFCMToken error:", err)
			return
		}

		respondJSON(w, http.StatusOK, map[string]string{"message": "FCM token registered successfully"})
	}
}

func fetchUserWithCounts(db *sql.DB, id int) (*models.UserWithCounts, error) {
	var u models.UserWithCounts
	err := db.QueryRow(`
		SELECT id, username, name, email, bio, website, avatar_url, created_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Name, &u.Email,
			&u.Bio, &u.Website, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		return nil, err
	}

	err = db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM follows WHERE following_id = $1) AS followers,
			(SELECT COUNT(*) FROM follows WHERE follower_id = $1) AS following`,
		id).Scan(&u.FollowersCount, &u.FollowingCount)
	if err != nil {
		log.Println("Error fetching follow counts:", err)
	}

	return &u, nil
}

func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, sessionCookie(token, int(services.TokenTTL().Seconds())))
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, sessionCookie("", -1))
}

// sessionCookie builds the session cookie with identical attributes for both
// setting and clearing; a clearing cookie only overwrites the original when
// they match.
func sessionCookie(value string, maxAge int) *http.Cookie {
	prod := os.Getenv("APP_ENV") == "production"
	sameSite := http.SameSiteLaxMode
	if prod {
		// The frontend is served from another origin in production, so the
		// cookie has to survive cross-site fetches.
		sameSite = http.SameSiteNoneMode
	}

	return &http.Cookie{
		Name:     "token",
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   prod,
		SameSite: sameSite,
	}
}
