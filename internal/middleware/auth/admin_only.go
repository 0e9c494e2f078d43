package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mkostiuk/contact_service/internal/logging"
	"github.com/mkostiuk/contact_service/internal/service/identity"
)

// AdminOnly layers the role gate over RequireLogin. A valid non-admin
// identity gets 403, not 401.
func (m *Middleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.RequireLogin(func(c echo.Context) error {
		user := CurrentUser(c)
		if err := identity.RequireRole(user, "admin"); err != nil {
			logging.FromContext(c.Request().Context()).Warn("role_check_failed", "status", 403, "error", err)
			return echo.NewHTTPError(http.StatusForbidden, "admin privileges required")
		}
		return next(c)
	})
}
