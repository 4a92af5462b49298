package service

import (
	"context"
	"errors"
	"time"

	"github.com/amazingshop/userservice/internal/hash"
	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
	"github.com/amazingshop/userservice/internal/tokens"
)

// UserStore is the account persistence surface the services depend on.
// Production wiring passes the cache decorator, never the raw repo.
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

type TokenPair struct {
	AccessToken      string
	AccessExpiresIn  int64
	RefreshToken     string
	RefreshExpiresIn int64
	Username         string
}

// AuthService owns the session lifecycle: login, refresh, logout. An account
// has at most one active session; every refresh rotates the stored token.
type AuthService struct {
	Users UserStore
	Codec *tokens.Codec
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Same outcome as a wrong password: do not leak which
			// half of the credentials was wrong.
			l.Warn("login_failed", "status", 401)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	l.Info("login_successful", "username", username)
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair, rotating the
// stored value. Every failure collapses to ErrUnauthorized so the caller
// cannot tell which check rejected the token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	username, err := s.Codec.Validate(refreshToken)
	if err != nil {
		l.Debug("refresh_rejected", "reason", "invalid_token", "error", err)
		return nil, ErrUnauthorized
	}
	if s.Codec.Kind(refreshToken) != tokens.KindRefresh {
		l.Debug("refresh_rejected", "reason", "wrong_kind")
		return nil, ErrUnauthorized
	}

	user, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		l.Debug("refresh_rejected", "reason", "unknown_user")
		return nil, ErrUnauthorized
	}
	if user.RefreshTokenExpiry == nil || !user.RefreshTokenExpiry.After(time.Now()) {
		l.Debug("refresh_rejected", "reason", "session_elapsed")
		return nil, ErrUnauthorized
	}

	accessToken, err := s.Codec.IssueAccess(user.Username)
	if err != nil {
		return nil, err
	}
	newRefresh, err := s.Codec.IssueRefresh(user.Username)
	if err != nil {
		return nil, err
	}

	// Compare-and-swap: succeeds only while the stored value still equals
	// the presented one, so a rotated-out or concurrent duplicate loses.
	expiry := time.Now().Add(s.Codec.RefreshTTL())
	if err := s.Users.RotateSession(ctx, user.ID, refreshToken, newRefresh, expiry); err != nil {
		if errors.Is(err, repo.ErrSessionMismatch) {
			l.Debug("refresh_rejected", "reason", "session_mismatch")
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	l.Info("refresh_successful", "username", user.Username)
	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresIn:  s.Codec.AccessTTLSeconds(),
		RefreshToken:     newRefresh,
		RefreshExpiresIn: s.Codec.RefreshTTLSeconds(),
		Username:         user.Username,
	}, nil
}

// Logout clears the account's session based on the token's username claim
// alone. The presented token does not have to match the stored one: once the
// claim is verified, clearing that account's session is safe and idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	username, err := s.Codec.Validate(refreshToken)
	if err != nil {
		l.Debug("logout_rejected", "reason", "invalid_token", "error", err)
		return ErrUnauthorized
	}
	user, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		l.Debug("logout_rejected", "reason", "unknown_user")
		return ErrUnauthorized
	}
	if err := s.Users.ClearSession(ctx, user.ID); err != nil {
		return err
	}
	l.Info("logout_successful", "username", username)
	return nil
}

// mintPair issues a fresh access+refresh pair and persists the refresh side
// as the account's single active session.
func (s *AuthService) mintPair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := s.Codec.IssueAccess(user.Username)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.Codec.IssueRefresh(user.Username)
	if err != nil {
		return nil, err
	}

	expiry := time.Now().Add(s.Codec.RefreshTTL())
	if err := s.Users.SetSession(ctx, user.ID, refreshToken, expiry); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresIn:  s.Codec.AccessTTLSeconds(),
		RefreshToken:     refreshToken,
		RefreshExpiresIn: s.Codec.RefreshTTLSeconds(),
		Username:         user.Username,
	}, nil
}
