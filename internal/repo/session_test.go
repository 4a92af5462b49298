package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amazingshop/userservice/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Chat{}, &models.ChatMessage{}))

	return &GormRepo{DB: db}
}

func createTestUser(t *testing.T, r *GormRepo, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		PasswordHash: "x",
		Email:        username + "@example.com",
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, r.Create(context.Background(), user))
	return user
}

func TestGormRepo_SetSession(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, r.SetSession(ctx, user.ID, "token-1", expiry))

	got, err := r.ByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "token-1", *got.RefreshToken)
	require.NotNil(t, got.RefreshTokenExpiry)
	assert.WithinDuration(t, expiry, *got.RefreshTokenExpiry, time.Second)
}

func TestGormRepo_SetSession_UnknownUser(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)

	err := r.SetSession(context.Background(), 9999, "token", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormRepo_RotateSession(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	require.NoError(t, r.SetSession(ctx, user.ID, "old-token", time.Now().Add(time.Hour)))

	err := r.RotateSession(ctx, user.ID, "old-token", "new-token", time.Now().Add(2*time.Hour))
	require.NoError(t, err)

	got, err := r.ByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "new-token", *got.RefreshToken)
}

func TestGormRepo_RotateSession_StaleValueLoses(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	require.NoError(t, r.SetSession(ctx, user.ID, "old-token", time.Now().Add(time.Hour)))
	require.NoError(t, r.RotateSession(ctx, user.ID, "old-token", "new-token", time.Now().Add(time.Hour)))

	// Replay of the rotated-out value must not rotate again.
	err := r.RotateSession(ctx, user.ID, "old-token", "evil-token", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrSessionMismatch)

	got, err := r.ByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "new-token", *got.RefreshToken)
}

func TestGormRepo_ClearSession(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	require.NoError(t, r.SetSession(ctx, user.ID, "token-1", time.Now().Add(time.Hour)))
	require.NoError(t, r.ClearSession(ctx, user.ID))

	got, err := r.ByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)
	assert.Nil(t, got.RefreshTokenExpiry)

	// Rotation against a cleared session must fail: there is nothing to
	// match.
	err = r.RotateSession(ctx, user.ID, "token-1", "new-token", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrSessionMismatch)
}

func TestGormRepo_ClearSession_Idempotent(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	require.NoError(t, r.ClearSession(ctx, user.ID))
	require.NoError(t, r.ClearSession(ctx, user.ID))
}

func TestGormRepo_Create_Duplicate(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	createTestUser(t, r, "alice")

	err := r.Create(ctx, &models.User{
		Username:     "alice",
		PasswordHash: "x",
		Email:        "other@example.com",
		Role:         models.RoleUser,
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = r.Create(ctx, &models.User{
		Username:     "bob",
		PasswordHash: "x",
		Email:        "alice@example.com",
		Role:         models.RoleUser,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGormRepo_PromoteToAdmin(t *testing.T) {
	t.Parallel()

	r := newTestRepo(t)
	ctx := context.Background()
	user := createTestUser(t, r, "alice")

	require.NoError(t, r.PromoteToAdmin(ctx, user.ID))

	got, err := r.ByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	assert.ErrorIs(t, r.PromoteToAdmin(ctx, 9999), ErrNotFound)
}
