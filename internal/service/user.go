package service

import (
	"context"
	"errors"

	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
)

// ProfileUpdate carries the fields a user may change on their own account.
// Nil means "leave unchanged".
type ProfileUpdate struct {
	Email             *string
	ProfilePictureURL *string
}

type UserService struct {
	Users UserStore
}

func (s *UserService) CurrentUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.Users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateCurrentUser(ctx context.Context, userID uint, upd ProfileUpdate) (*models.User, error) {
	user, err := s.Users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if upd.Email != nil {
		if !emailPattern.MatchString(*upd.Email) {
			return nil, &ValidationError{Fields: map[string]string{"email": "invalid email format"}}
		}
		user.Email = *upd.Email
	}
	if upd.ProfilePictureURL != nil {
		user.ProfilePictureURL = *upd.ProfilePictureURL
	}

	if err := s.Users.Update(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.Users.All(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.Users.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "user.delete")
	if err := s.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	l.Info("user_deleted", "user_id", id)
	return nil
}

// PromoteToAdmin is the sole role mutation in the system.
func (s *UserService) PromoteToAdmin(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "user.promote")
	if err := s.Users.PromoteToAdmin(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	l.Info("user_promoted", "user_id", id)
	return nil
}
