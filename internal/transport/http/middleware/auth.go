package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/presentation/http/response"
	authsvc "github.com/Additional-Code/orderdesk/internal/service/auth"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

const userContextKey = "orderdesk.user"

// RequireUser builds an echo middleware that resolves the bearer token
// to an authenticated user and stores it on the request context. Any
// failure renders a 401 with a bearer challenge.
func RequireUser(svc *authsvc.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return response.New(c).
					WithError(errorbank.Unauthenticated("missing bearer token")).
					Build()
			}

			user, err := svc.Resolve(c.Request().Context(), token)
			if err != nil {
				return response.New(c).WithError(err).Build()
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user placed on the context by
// RequireUser, or nil when the route is unauthenticated.
func CurrentUser(c echo.Context) *entity.User {
	user, _ := c.Get(userContextKey).(*entity.User)
	return user
}

func bearerToken(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
