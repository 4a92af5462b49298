package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/service"
)

// httpError maps the service error taxonomy to HTTP responses. Anything
// unmatched is reported generically; details stay in the server log.
func httpError(err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"errors": verr.Fields})
	}

	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, service.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
