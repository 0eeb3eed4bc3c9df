package auth

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/config"
)

// Module provides the credential primitives to Fx.
var Module = fx.Provide(
	func(cfg config.Config) *Hasher { return NewHasher(cfg.Auth.BcryptCost) },
	func(cfg config.Config) *TokenIssuer { return NewTokenIssuer(cfg.Auth) },
)
