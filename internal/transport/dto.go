package transport

import (
	"time"

	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/service"
)

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type OAuthLoginRequest struct {
	IDToken string `json:"idToken"`
}

type UpdateProfileRequest struct {
	Email             *string `json:"email"`
	ProfilePictureURL *string `json:"profilePictureUrl"`
}

type TokenPairResponse struct {
	AccessToken           string `json:"accessToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshToken          string `json:"refreshToken"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
	Username              string `json:"username"`
}

func NewTokenPairResponse(pair *service.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:           pair.AccessToken,
		AccessTokenExpiresIn:  pair.AccessExpiresIn,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresIn: pair.RefreshExpiresIn,
		Username:              pair.Username,
	}
}

type UserResponse struct {
	ID                uint      `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	ProfilePictureURL string    `json:"profilePictureUrl"`
	CreatedAt         time.Time `json:"createdAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Role:              u.Role,
		ProfilePictureURL: u.ProfilePictureURL,
		CreatedAt:         u.CreatedAt,
	}
}

func NewUserListResponse(users []models.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}
