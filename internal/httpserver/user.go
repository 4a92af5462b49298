package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/middleware"
	"github.com/amazingshop/userservice/internal/service"
	"github.com/amazingshop/userservice/internal/transport"
)

type UserHTTP struct {
	Svc *service.UserService
}

func (h *UserHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	user, err := h.Svc.CurrentUser(ctx, identity.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}

func (h *UserHTTP) UpdateMe(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	var req transport.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.UpdateCurrentUser(ctx, identity.UserID, service.ProfileUpdate{
		Email:             req.Email,
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}
