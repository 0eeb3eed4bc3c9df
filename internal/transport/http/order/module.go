package order

import (
	"go.uber.org/fx"

	"github.com/labstack/echo/v4"

	authsvc "github.com/Additional-Code/orderdesk/internal/service/auth"
)

// Module wires HTTP order handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(func(e *echo.Echo, h *Handler, auth *authsvc.Service) {
		Register(e, h, auth)
	}),
)
