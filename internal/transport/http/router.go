package httpserver

import (
	"github.com/labstack/echo/v4"

	authhdl "github.com/mkostiuk/contact_service/internal/handlers/auth"
	"github.com/mkostiuk/contact_service/internal/handlers/contacts"
	mw "github.com/mkostiuk/contact_service/internal/middleware/auth"
)

type Deps struct {
	AuthHandler    *authhdl.AuthHandler
	ContactHandler *contacts.ContactHandler
	AuthMW         *mw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/signup", d.AuthHandler.Signup)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.GET("/verify-email", d.AuthHandler.VerifyEmail)
	auth.POST("/password-reset-request", d.AuthHandler.RequestPasswordReset)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)

	users := v1.Group("/users", d.AuthMW.RequireLogin)
	users.GET("/me", d.AuthHandler.Me)
	users.PATCH("/avatar", d.AuthHandler.UpdateAvatar)

	admin := v1.Group("/admin", d.AuthMW.AdminOnly)
	admin.GET("/users", d.AuthHandler.ListUsers)

	ct := v1.Group("/contacts", d.AuthMW.RequireLogin)
	ct.POST("", d.ContactHandler.Create)
	ct.GET("", d.ContactHandler.List)
	ct.GET("/search", d.ContactHandler.Search)
	ct.GET("/birthdays", d.ContactHandler.UpcomingBirthdays)
	ct.GET("/:id", d.ContactHandler.Get)
	ct.PUT("/:id", d.ContactHandler.Update)
	ct.DELETE("/:id", d.ContactHandler.Delete)
}
