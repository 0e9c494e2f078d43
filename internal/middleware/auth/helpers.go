package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/mkostiuk/contact_service/internal/models"
)

const userContextKey = "current_user"

func setUser(c echo.Context, user *models.User) {
	c.Set(userContextKey, user)
}

// CurrentUser returns the user resolved by RequireLogin, or nil outside the
// middleware chain.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}
