package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/amazingshop/userservice/internal/middleware"
	"github.com/amazingshop/userservice/internal/models"
)

type Deps struct {
	Gate  *middleware.AuthGate
	Auth  *AuthHTTP
	Users *UserHTTP
	Chats *ChatHTTP
	Admin *AdminHTTP
}

func Register(e *echo.Echo, d *Deps) {
	v1 := e.Group("/api/v1", d.Gate.Authenticate)

	auth := v1.Group("/auth")
	auth.POST("/signup", d.Auth.Signup)
	auth.POST("/login", d.Auth.Login)
	auth.POST("/refresh", d.Auth.Refresh)
	auth.POST("/logout", d.Auth.Logout)
	auth.POST("/oauth2/google", d.Auth.GoogleLogin)
	auth.GET("/health", d.Auth.Health)

	users := v1.Group("/users", middleware.RequireAuth)
	users.GET("/me", d.Users.Me)
	users.PATCH("/me", d.Users.UpdateMe)

	chats := v1.Group("/chats", middleware.RequireAuth)
	chats.GET("", d.Chats.ListChats)
	chats.POST("", d.Chats.CreateChat)
	chats.DELETE("", d.Chats.DeleteAllChats)
	chats.GET("/recent", d.Chats.RecentChats)
	chats.GET("/search", d.Chats.Search)
	chats.PATCH("/:id/title", d.Chats.UpdateTitle)
	chats.DELETE("/:id", d.Chats.DeleteChat)
	chats.GET("/:id/messages", d.Chats.Messages)
	chats.POST("/:id/messages", d.Chats.AddMessage)

	admin := v1.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.GET("/users", d.Admin.ListUsers)
	admin.GET("/users/:id", d.Admin.GetUser)
	admin.DELETE("/users/:id", d.Admin.DeleteUser)
	admin.POST("/users/:id/promote", d.Admin.PromoteUser)
}
