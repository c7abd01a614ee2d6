package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"socialbase.com/social-media-be/middleware"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// authedRequest builds a request carrying the authenticated user id the way
// the auth middleware would, plus any route variables.
func authedRequest(method, target, body string, userID int, vars map[string]string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if userID != 0 {
		r = r.WithContext(middleware.WithUserID(r.Context(), userID))
	}
	if vars != nil {
		r = mux.SetURLVars(r, vars)
	}
	return r
}

func userRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "username", "name", "email", "bio", "website", "avatar_url", "created_at",
	}).AddRow(1, "alice", "Alice", "alice@example.com", "", "", "", time.Now())
}

func TestRegisterInvalidUsername(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	Register(db)(w, authedRequest("POST", "/register",
		`{"username":"a!","name":"Alice","email":"alice@example.com","password":"secret"}`, 0, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username must be")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterInvalidEmail(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	Register(db)(w, authedRequest("POST", "/register",
		`{"username":"alice","name":"Alice","email":"not-an-email","password":"secret"}`, 0, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email address format")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := httptest.NewRecorder()
	Register(db)(w, authedRequest("POST", "/register",
		`{"username":"alice","name":"Alice","email":"alice@example.com","password":"secret"}`, 0, nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterSuccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("alice", "alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	w := httptest.NewRecorder()
	Register(db)(w, authedRequest("POST", "/register",
		`{"username":"alice","name":"Alice","email":"alice@example.com","password":"secret"}`, 0, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Register successful")
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NotContains(t, w.Body.String(), "password")

	var tokenCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie, "session cookie should be set")
	assert.NotEmpty(t, tokenCookie.Value)
	assert.True(t, tokenCookie.HttpOnly)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
	require.NoError(t, err)

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, password").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "name", "email", "password", "bio", "website", "avatar_url", "created_at",
		}).AddRow(1, "alice", "Alice", "alice@example.com", string(hashed), "", "", "", time.Now()))

	w := httptest.NewRecorder()
	Login(db)(w, authedRequest("POST", "/login",
		`{"email":"alice@example.com","password":"wrong-password"}`, 0, nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginUnknownEmail(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, password").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	w := httptest.NewRecorder()
	Login(db)(w, authedRequest("POST", "/login",
		`{"email":"ghost@example.com","password":"whatever"}`, 0, nil))

	// Same response as a bad password so the endpoint does not leak which
	// emails are registered.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuccess(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	hashed, err := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
	require.NoError(t, err)

	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, password").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "username", "name", "email", "password", "bio", "website", "avatar_url", "created_at",
		}).AddRow(1, "alice", "Alice", "alice@example.com", string(hashed), "", "", "", time.Now()))

	w := httptest.NewRecorder()
	Login(db)(w, authedRequest("POST", "/login",
		`{"email":"alice@example.com","password":"right-password"}`, 0, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Login successful")
	assert.NotContains(t, w.Body.String(), "password")

	var tokenCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie)
	assert.NotEmpty(t, tokenCookie.Value)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutClearsCookie(t *testing.T) {
	w := httptest.NewRecorder()
	Logout()(w, httptest.NewRequest("POST", "/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestLogoutClearsCookieInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	w := httptest.NewRecorder()
	Logout()(w, httptest.NewRequest("POST", "/logout", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	// The clearing cookie has to carry the same cross-site attributes as the
	// one it overwrites.
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestGetUserByIdNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, bio").
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	w := httptest.NewRecorder()
	GetUserById(db)(w, authedRequest("GET", "/users/99", "", 0, map[string]string{"id": "99"}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "User not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentUser(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, bio").
		WithArgs(1).
		WillReturnRows(userRow())
	mock.ExpectQuery("SELECT").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"followers", "following"}).AddRow(3, 5))

	w := httptest.NewRecorder()
	GetCurrentUser(db)(w, authedRequest("GET", "/users/me", "", 1, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.Contains(t, w.Body.String(), `"followers_count":3`)
	assert.Contains(t, w.Body.String(), `"following_count":5`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserForbidden(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	UpdateUser(db)(w, authedRequest("PUT", "/users/5",
		`{"name":"Mallory"}`, 7, map[string]string{"id": "5"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserNoFields(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	UpdateUser(db)(w, authedRequest("PUT", "/users/1", `{}`, 1, map[string]string{"id": "1"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No fields provided")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUserSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("UPDATE users SET").
		WithArgs("New bio", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, username, name, email, bio").
		WithArgs(1).
		WillReturnRows(userRow())
	mock.ExpectQuery("SELECT").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"followers", "following"}).AddRow(0, 0))

	w := httptest.NewRecorder()
	UpdateUser(db)(w, authedRequest("PUT", "/users/1",
		`{"bio":"New bio"}`, 1, map[string]string{"id": "1"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserForbidden(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	DeleteUser(db)(w, authedRequest("DELETE", "/users/5", "", 7, map[string]string{"id": "5"}))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUserSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM users").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	DeleteUser(db)(w, authedRequest("DELETE", "/users/1", "", 1, map[string]string{"id": "1"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User deleted successfully")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchUsersEmptyQuery(t *testing.T) {
	db, mock := newMockDB(t)

	w := httptest.NewRecorder()
	SearchUsers(db)(w, httptest.NewRequest("GET", "/users/search?q=++", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchUsers(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT id, username, name, email, bio").
		WithArgs("%ali%", "ali%").
		WillReturnRows(userRow())

	w := httptest.NewRecorder()
	SearchUsers(db)(w, httptest.NewRequest("GET", "/users/search?q=ali", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
