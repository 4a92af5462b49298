package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/service"
	"github.com/amazingshop/userservice/internal/transport"
)

type AdminHTTP struct {
	Svc *service.UserService
}

func (h *AdminHTTP) ListUsers(c echo.Context) error {
	users, err := h.Svc.ListUsers(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserListResponse(users))
}

func (h *AdminHTTP) GetUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	user, err := h.Svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, transport.NewUserResponse(user))
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *AdminHTTP) PromoteUser(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.PromoteToAdmin(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
