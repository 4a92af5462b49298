package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/service"
	"github.com/amazingshop/userservice/internal/transport"
)

type AuthHTTP struct {
	Sessions     *service.AuthService
	Registration *service.RegistrationService
	OAuth        *service.OAuthService
}

func (h *AuthHTTP) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req transport.SignupRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Registration.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, transport.NewTokenPairResponse(pair))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.NewTokenPairResponse(pair))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("refresh_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.NewTokenPairResponse(pair))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req transport.RefreshTokenRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("logout_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Sessions.Logout(ctx, req.RefreshToken); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusOK)
}

func (h *AuthHTTP) GoogleLogin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_oauth_google")

	var req transport.OAuthLoginRequest
	if err := c.Bind(&req); err != nil || req.IDToken == "" {
		l.Warn("oauth_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.OAuth.LoginWithGoogle(ctx, req.IDToken)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, transport.NewTokenPairResponse(pair))
}

func (h *AuthHTTP) Health(c echo.Context) error {
	return c.String(http.StatusOK, "Auth service is running")
}
