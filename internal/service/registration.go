package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/amazingshop/userservice/internal/hash"
	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
)

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)

// EventPublisher is the message-channel side of registration: a best-effort
// notification fired after the account row is committed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event any) error
}

type UserRegisteredEvent struct {
	Type     string `json:"type"`
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RegistrationService struct {
	Users    UserStore
	Sessions *AuthService
	Producer EventPublisher
}

// Register validates the candidate, persists the account and returns an
// initial token pair. The welcome notification is dispatched asynchronously
// after the row is durably committed; a dispatch failure never fails the
// registration.
func (s *RegistrationService) Register(ctx context.Context, username, email, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "registration")

	if verr := s.validate(ctx, username, email, password); verr != nil {
		l.Warn("register_rejected", "status", 400, "error", verr)
		return nil, verr
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		PasswordHash: pwHash,
		Email:        email,
		Role:         models.RoleUser,
		CreatedAt:    time.Now(),
	}

	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the race with a concurrent registration after the
			// uniqueness pre-checks passed.
			l.Warn("register_rejected", "status", 409, "username", username)
			return nil, ErrConflict
		}
		return nil, err
	}

	pair, err := s.Sessions.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.dispatchWelcome(ctx, user)

	l.Info("register_successful", "username", username)
	return pair, nil
}

func (s *RegistrationService) validate(ctx context.Context, username, email, password string) error {
	fields := map[string]string{}

	switch {
	case username == "":
		fields["username"] = "username cannot be empty"
	case len(username) < 2 || len(username) > 30:
		fields["username"] = "username should be between 2 and 30 characters"
	default:
		if _, err := s.Users.ByUsername(ctx, username); err == nil {
			fields["username"] = "a user with this username already exists"
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}

	switch {
	case email == "":
		fields["email"] = "email cannot be empty"
	case !emailPattern.MatchString(email):
		fields["email"] = "invalid email format"
	default:
		if _, err := s.Users.ByEmail(ctx, email); err == nil {
			fields["email"] = "a user with this email already exists"
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}

	switch {
	case password == "":
		fields["password"] = "password cannot be empty"
	case len(password) < 6:
		fields["password"] = "password should be at least 6 characters long"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// dispatchWelcome fires the notification on its own goroutine with a detached
// context: the request may finish before the broker acknowledges.
func (s *RegistrationService) dispatchWelcome(ctx context.Context, user *models.User) {
	if s.Producer == nil {
		return
	}
	l := logging.FromContext(ctx)
	event := UserRegisteredEvent{
		Type:     "user_registered",
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}
	key := user.Username

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Producer.PublishEvent(pubCtx, key, event); err != nil {
			l.Error("welcome_event_failed", "username", event.Username, "error", err)
		}
	}()
}
