package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
)

// UserStore is the slice of the repository the decorator wraps.
type UserStore interface {
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id uint) (*models.User, error)
	All(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uint) error
	PromoteToAdmin(ctx context.Context, id uint) error
	SetSession(ctx context.Context, userID uint, token string, expiry time.Time) error
	ClearSession(ctx context.Context, userID uint) error
	RotateSession(ctx context.Context, userID uint, presented, next string, expiry time.Time) error
}

// Users is a cache-aside decorator over a UserStore. Reads by username or id
// go through redis; every mutation invalidates the affected username and id
// keys. The invalidation set of each mutation is part of its contract. Cache
// failures degrade to the underlying store and are only logged.
type Users struct {
	Inner UserStore
	Cache *Store
}

func NewUsers(inner UserStore, store *Store) *Users {
	return &Users{Inner: inner, Cache: store}
}

func usernameKey(username string) string { return "user:username:" + username }

func idKey(id uint) string { return fmt.Sprintf("user:id:%d", id) }

// cachedUser is the cache encoding of an account. The model's own JSON tags
// hide the password hash and session fields from API responses, so the cache
// carries its own record that round-trips every persisted column.
type cachedUser struct {
	ID                 uint       `json:"id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"password_hash"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	ProfilePictureURL  string     `json:"profile_picture_url"`
	CreatedAt          time.Time  `json:"created_at"`
	RefreshToken       *string    `json:"refresh_token"`
	RefreshTokenExpiry *time.Time `json:"refresh_token_expiry"`
}

func toCached(u *models.User) cachedUser {
	return cachedUser{
		ID:                 u.ID,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Email:              u.Email,
		Role:               u.Role,
		ProfilePictureURL:  u.ProfilePictureURL,
		CreatedAt:          u.CreatedAt,
		RefreshToken:       u.RefreshToken,
		RefreshTokenExpiry: u.RefreshTokenExpiry,
	}
}

func (c cachedUser) user() *models.User {
	return &models.User{
		ID:                 c.ID,
		Username:           c.Username,
		PasswordHash:       c.PasswordHash,
		Email:              c.Email,
		Role:               c.Role,
		ProfilePictureURL:  c.ProfilePictureURL,
		CreatedAt:          c.CreatedAt,
		RefreshToken:       c.RefreshToken,
		RefreshTokenExpiry: c.RefreshTokenExpiry,
	}
}

func (u *Users) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var cached cachedUser
	if hit, err := u.Cache.Get(ctx, usernameKey(username), &cached); err != nil {
		logging.FromContext(ctx).Warn("cache_get_failed", "key", usernameKey(username), "error", err)
	} else if hit {
		return cached.user(), nil
	}

	user, err := u.Inner.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	u.fill(ctx, user)
	return user, nil
}

func (u *Users) ByID(ctx context.Context, id uint) (*models.User, error) {
	var cached cachedUser
	if hit, err := u.Cache.Get(ctx, idKey(id), &cached); err != nil {
		logging.FromContext(ctx).Warn("cache_get_failed", "key", idKey(id), "error", err)
	} else if hit {
		return cached.user(), nil
	}

	user, err := u.Inner.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.fill(ctx, user)
	return user, nil
}

// ByEmail is uncached: it is only used on the registration and OAuth2 paths.
func (u *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return u.Inner.ByEmail(ctx, email)
}

func (u *Users) All(ctx context.Context) ([]models.User, error) {
	return u.Inner.All(ctx)
}

// Create invalidates: username, id.
func (u *Users) Create(ctx context.Context, user *models.User) error {
	if err := u.Inner.Create(ctx, user); err != nil {
		return err
	}
	u.invalidate(ctx, user.Username, user.ID)
	return nil
}

// Update invalidates: username, id.
func (u *Users) Update(ctx context.Context, user *models.User) error {
	if err := u.Inner.Update(ctx, user); err != nil {
		return err
	}
	u.invalidate(ctx, user.Username, user.ID)
	return nil
}

// Delete invalidates: username, id.
func (u *Users) Delete(ctx context.Context, id uint) error {
	username := u.usernameOf(ctx, id)
	if err := u.Inner.Delete(ctx, id); err != nil {
		return err
	}
	u.invalidate(ctx, username, id)
	return nil
}

// PromoteToAdmin invalidates: username, id.
func (u *Users) PromoteToAdmin(ctx context.Context, id uint) error {
	username := u.usernameOf(ctx, id)
	if err := u.Inner.PromoteToAdmin(ctx, id); err != nil {
		return err
	}
	u.invalidate(ctx, username, id)
	return nil
}

// SetSession invalidates: username, id.
func (u *Users) SetSession(ctx context.Context, userID uint, token string, expiry time.Time) error {
	username := u.usernameOf(ctx, userID)
	if err := u.Inner.SetSession(ctx, userID, token, expiry); err != nil {
		return err
	}
	u.invalidate(ctx, username, userID)
	return nil
}

// ClearSession invalidates: username, id.
func (u *Users) ClearSession(ctx context.Context, userID uint) error {
	username := u.usernameOf(ctx, userID)
	if err := u.Inner.ClearSession(ctx, userID); err != nil {
		return err
	}
	u.invalidate(ctx, username, userID)
	return nil
}

// RotateSession invalidates: username, id.
func (u *Users) RotateSession(ctx context.Context, userID uint, presented, next string, expiry time.Time) error {
	username := u.usernameOf(ctx, userID)
	if err := u.Inner.RotateSession(ctx, userID, presented, next, expiry); err != nil {
		return err
	}
	u.invalidate(ctx, username, userID)
	return nil
}

func (u *Users) fill(ctx context.Context, user *models.User) {
	cached := toCached(user)
	if err := u.Cache.Set(ctx, usernameKey(user.Username), cached); err != nil {
		logging.FromContext(ctx).Warn("cache_set_failed", "key", usernameKey(user.Username), "error", err)
		return
	}
	if err := u.Cache.Set(ctx, idKey(user.ID), cached); err != nil {
		logging.FromContext(ctx).Warn("cache_set_failed", "key", idKey(user.ID), "error", err)
	}
}

func (u *Users) invalidate(ctx context.Context, username string, id uint) {
	keys := []string{idKey(id)}
	if username != "" {
		keys = append(keys, usernameKey(username))
	}
	if err := u.Cache.Delete(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("cache_evict_failed", "keys", keys, "error", err)
	}
}

// usernameOf resolves the username for key invalidation on mutations keyed by
// id only. A lookup failure just narrows the invalidation to the id key.
func (u *Users) usernameOf(ctx context.Context, id uint) string {
	user, err := u.Inner.ByID(ctx, id)
	if err != nil {
		return ""
	}
	return user.Username
}
