package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/middleware"
	"github.com/amazingshop/userservice/internal/service"
)

type ChatHTTP struct {
	Svc *service.ChatService
}

func (h *ChatHTTP) ListChats(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	chats, err := h.Svc.ListChats(ctx, identity.UserID, c.QueryParam("title"), c.QueryParam("subject"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"chats": chats})
}

func (h *ChatHTTP) RecentChats(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	chats, err := h.Svc.RecentChats(ctx, identity.UserID, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"chats": chats})
}

func (h *ChatHTTP) CreateChat(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	var req struct {
		Title   string `json:"title"`
		Subject string `json:"subject"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	chat, err := h.Svc.CreateChat(ctx, identity.UserID, req.Title, req.Subject)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, chat)
}

func (h *ChatHTTP) UpdateTitle(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	chatID, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	chat, err := h.Svc.UpdateChatTitle(ctx, chatID, identity.UserID, req.Title)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (h *ChatHTTP) DeleteChat(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	chatID, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteChat(ctx, chatID, identity.UserID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHTTP) DeleteAllChats(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	if err := h.Svc.DeleteAllChats(ctx, identity.UserID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *ChatHTTP) Messages(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	chatID, err := parseID(c)
	if err != nil {
		return err
	}
	msgs, err := h.Svc.Messages(ctx, chatID, identity.UserID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *ChatHTTP) AddMessage(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	chatID, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		Role         string `json:"role"`
		Content      string `json:"content"`
		TemplateUsed string `json:"templateUsed"`
	}
	if err := c.Bind(&req); err != nil || req.Content == "" || req.Role == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	msg, err := h.Svc.AddMessage(ctx, chatID, identity.UserID, req.Role, req.Content, req.TemplateUsed)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *ChatHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	identity, _ := middleware.IdentityFrom(c)

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query")
	}

	docs, err := h.Svc.SearchMessages(ctx, identity.UserID, query)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"results": docs})
}
