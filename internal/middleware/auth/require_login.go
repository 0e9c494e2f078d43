package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkostiuk/contact_service/internal/logging"
	"github.com/mkostiuk/contact_service/internal/service/identity"
)

type Middleware struct {
	Resolver *identity.Resolver
}

// RequireLogin resolves the bearer token and stores the user on the echo
// context. The 401 body is the same for a missing header, a bad token and an
// unknown subject.
func (m *Middleware) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		raw := bearerToken(c)
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
		}

		user, err := m.Resolver.Resolve(ctx, raw)
		if err != nil {
			logging.FromContext(ctx).Warn("auth_failed", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
		}

		setUser(c, user)
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
