package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amazingshop/userservice/internal/hash"
	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
)

// ExternalIdentity is what an identity provider asserts about a user after
// its token has been verified.
type ExternalIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier verifies a provider-issued token and returns the external
// identity. The provider is a black box behind this interface.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*ExternalIdentity, error)
}

const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// GoogleVerifier checks a Google ID token against the tokeninfo endpoint and
// requires the audience to match the configured client id.
type GoogleVerifier struct {
	ClientID   string
	HTTPClient *http.Client
	Endpoint   string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		ClientID:   clientID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Endpoint:   googleTokenInfoURL,
	}
}

func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.Endpoint+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, err
	}

	res, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google tokeninfo: status %d", res.StatusCode)
	}

	var payload struct {
		Aud     string `json:"aud"`
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("google tokeninfo: %w", err)
	}
	if payload.Aud != g.ClientID {
		return nil, errors.New("google tokeninfo: audience mismatch")
	}
	if payload.Email == "" {
		return nil, errors.New("google tokeninfo: no email in token")
	}

	return &ExternalIdentity{
		Subject: payload.Sub,
		Email:   payload.Email,
		Name:    payload.Name,
		Picture: payload.Picture,
	}, nil
}

type OAuthService struct {
	Users    UserStore
	Sessions *AuthService
	Verifier IdentityVerifier
}

// LoginWithGoogle verifies the provider token, finds or creates the matching
// account by email and mints a token pair for it.
func (s *OAuthService) LoginWithGoogle(ctx context.Context, idToken string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "oauth.google")

	identity, err := s.Verifier.Verify(ctx, idToken)
	if err != nil {
		l.Warn("oauth_login_failed", "status", 401, "error", err)
		return nil, ErrUnauthorized
	}

	user, err := s.findOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	pair, err := s.Sessions.mintPair(ctx, user)
	if err != nil {
		return nil, err
	}
	l.Info("oauth_login_successful", "username", user.Username)
	return pair, nil
}

func (s *OAuthService) findOrCreate(ctx context.Context, identity *ExternalIdentity) (*models.User, error) {
	user, err := s.Users.ByEmail(ctx, identity.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	// Federated accounts get a locally unusable random password; the only
	// way in is through the provider.
	pwHash, err := hash.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Username:          s.uniqueUsername(ctx, identity.Email),
		PasswordHash:      pwHash,
		Email:             identity.Email,
		Role:              models.RoleUser,
		ProfilePictureURL: identity.Picture,
		CreatedAt:         time.Now(),
	}
	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Concurrent first login with the same provider account.
			return s.Users.ByEmail(ctx, identity.Email)
		}
		return nil, err
	}
	return user, nil
}

func (s *OAuthService) uniqueUsername(ctx context.Context, email string) string {
	base, _, _ := strings.Cut(email, "@")
	if len(base) < 2 {
		base = "user" + base
	}
	// Truncate on rune boundaries; local parts are not always ASCII.
	if runes := []rune(base); len(runes) > 24 {
		base = string(runes[:24])
	}
	candidate := base
	for i := 0; i < 5; i++ {
		if _, err := s.Users.ByUsername(ctx, candidate); errors.Is(err, repo.ErrNotFound) {
			return candidate
		}
		candidate = base + "-" + uuid.NewString()[:4]
	}
	return base + "-" + uuid.NewString()[:8]
}
