package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amazingshop/userservice/internal/middleware"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
	"github.com/amazingshop/userservice/internal/service"
	"github.com/amazingshop/userservice/internal/tokens"
	"github.com/amazingshop/userservice/internal/transport"
)

type testServer struct {
	e    *echo.Echo
	db   *gorm.DB
	repo *repo.GormRepo
}

// newTestServer wires the full route tree against an in-memory database, the
// same shape main assembles in production minus the external backends.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatMessage{}))

	gormRepo := &repo.GormRepo{DB: db}
	codec := tokens.NewCodec([]byte("test-jwt-secret"), 30*time.Minute, 14*24*time.Hour)

	auth := &service.AuthService{Users: gormRepo, Codec: codec}
	registration := &service.RegistrationService{Users: gormRepo, Sessions: auth}
	users := &service.UserService{Users: gormRepo}
	chats := &service.ChatService{Repo: gormRepo}

	e := echo.New()
	Register(e, &Deps{
		Gate:  &middleware.AuthGate{Codec: codec, Users: gormRepo},
		Auth:  &AuthHTTP{Sessions: auth, Registration: registration},
		Users: &UserHTTP{Svc: users},
		Chats: &ChatHTTP{Svc: chats},
		Admin: &AdminHTTP{Svc: users},
	})

	return &testServer{e: e, db: db, repo: gormRepo}
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodePair(t *testing.T, rec *httptest.ResponseRecorder) transport.TokenPairResponse {
	t.Helper()
	var pair transport.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	return pair
}

func TestTokenLifecycleOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// Sign up.
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"bob","email":"bob@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	signup := decodePair(t, rec)
	assert.Equal(t, "bob", signup.Username)
	assert.Equal(t, int64(1800), signup.AccessTokenExpiresIn)

	// Log in.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"bob","password":"Secret123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decodePair(t, rec)

	// Refresh rotates the token.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		fmt.Sprintf(`{"refreshToken":%q}`, login.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	refreshed := decodePair(t, rec)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The rotated-out token is rejected.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		fmt.Sprintf(`{"refreshToken":%q}`, login.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Log out with the live token.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/logout", "",
		fmt.Sprintf(`{"refreshToken":%q}`, refreshed.RefreshToken))
	require.Equal(t, http.StatusOK, rec.Code)

	// Nothing refreshes after logout.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "",
		fmt.Sprintf(`{"refreshToken":%q}`, refreshed.RefreshToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupValidationOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"","email":"bad","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username cannot be empty")
	assert.Contains(t, rec.Body.String(), "invalid email format")

	// Duplicate signup conflicts.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"carl","email":"carl@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"carl","email":"carl@example.com","password":"Secret123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")
}

func TestLoginFailuresOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"dana","email":"dana@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Wrong password and unknown user produce the same response.
	wrongPass := srv.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"dana","password":"nope"}`)
	unknown := srv.do(t, http.MethodPost, "/api/v1/auth/login", "",
		`{"username":"ghost","password":"Secret123"}`)
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrongPass.Body.String(), unknown.Body.String())
}

func TestProtectedRoutesOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"erin","email":"erin@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	pair := decodePair(t, rec)

	// Anonymous is rejected, a valid access token is accepted.
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/api/v1/users/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/api/v1/users/me", "garbage", "").Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/users/me", pair.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me transport.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "erin", me.Username)
	assert.Equal(t, "user", me.Role)

	// Profile update round-trips.
	rec = srv.do(t, http.MethodPatch, "/api/v1/users/me", pair.AccessToken,
		`{"email":"erin.new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "erin.new@example.com", me.Email)
}

func TestAdminRoutesOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"frank","email":"frank@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decodePair(t, rec)

	// A plain user is forbidden.
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/api/v1/admin/users", user.AccessToken, "").Code)
	// Anonymous is unauthorized, not forbidden.
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/api/v1/admin/users", "", "").Code)

	// Promote frank out-of-band, then the same token carries the new role on
	// the next request: roles live on the account, not in the token.
	require.NoError(t, srv.db.Model(&models.User{}).
		Where("username = ?", "frank").
		Update("role", models.RoleAdmin).Error)

	rec = srv.do(t, http.MethodGet, "/api/v1/admin/users", user.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var users []transport.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Len(t, users, 1)

	// Admin promotes and deletes another user.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"gina","email":"gina@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var gina models.User
	require.NoError(t, srv.db.Where("username = ?", "gina").First(&gina).Error)

	assert.Equal(t, http.StatusOK,
		srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/admin/users/%d/promote", gina.ID), user.AccessToken, "").Code)
	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/users/%d", gina.ID), user.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var promoted transport.UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &promoted))
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	assert.Equal(t, http.StatusOK,
		srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/users/%d", gina.ID), user.AccessToken, "").Code)
	assert.Equal(t, http.StatusNotFound,
		srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/users/%d", gina.ID), user.AccessToken, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodGet, "/api/v1/admin/users/abc", user.AccessToken, "").Code)
}

func TestChatRoutesOverHTTP(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"hana","email":"hana@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	pair := decodePair(t, rec)

	rec = srv.do(t, http.MethodPost, "/api/v1/chats", pair.AccessToken, `{"subject":"go"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var chat models.Chat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.Equal(t, "New Chat", chat.Title)

	rec = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/chats/%d/messages", chat.ID), pair.AccessToken,
		`{"role":"user","content":"what is a nil map"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d/messages", chat.ID), pair.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "what is a nil map")

	// The first user message retitles the chat.
	rec = srv.do(t, http.MethodGet, "/api/v1/chats", pair.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "what is a nil map")

	// Another user cannot touch it.
	rec = srv.do(t, http.MethodPost, "/api/v1/auth/signup", "",
		`{"username":"igor","email":"igor@example.com","password":"Secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	other := decodePair(t, rec)
	assert.Equal(t, http.StatusForbidden,
		srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d/messages", chat.ID), other.AccessToken, "").Code)

	// Search without an index backend reports not found.
	assert.Equal(t, http.StatusNotFound,
		srv.do(t, http.MethodGet, "/api/v1/chats/search?q=nil", pair.AccessToken, "").Code)
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodGet, "/api/v1/chats/search", pair.AccessToken, "").Code)

	assert.Equal(t, http.StatusOK,
		srv.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/chats/%d", chat.ID), pair.AccessToken, "").Code)
}

func TestHealthAndMalformedBodies(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/auth/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Auth service is running", rec.Body.String())

	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodPost, "/api/v1/auth/refresh", "", `{"refreshToken":""}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodPost, "/api/v1/auth/logout", "", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		srv.do(t, http.MethodPost, "/api/v1/auth/signup", "", `not json`).Code)
}
