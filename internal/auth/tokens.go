package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

// TokenIssuer mints and verifies bearer tokens. Tokens are stateless:
// validity is determined entirely by signature and expiry.
type TokenIssuer struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer builds a TokenIssuer from auth configuration. The
// algorithm set is restricted to the HMAC family; config.New rejects
// anything else at startup.
func NewTokenIssuer(cfg config.Auth) *TokenIssuer {
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		method = jwt.SigningMethodHS256
	}

	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Sign encodes the subject into a signed token expiring after the
// configured TTL.
func (t *TokenIssuer) Sign(subject string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, errorbank.Internal("failed to sign token", errorbank.WithCause(err))
	}
	return signed, expiresAt, nil
}

// Verify validates signature and expiry and returns the subject claim.
// Every failure mode collapses to Unauthenticated; callers learn
// nothing about why a token was rejected.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errorbank.Unauthenticated("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return "", errorbank.Unauthenticated("invalid or expired token", errorbank.WithCause(err))
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errorbank.Unauthenticated("invalid or expired token")
	}
	return claims.Subject, nil
}
