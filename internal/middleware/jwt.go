package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const callerLocal = "caller"

// Caller returns a middleware that authenticates the immediate caller from an
// HS256 bearer token. The token subject becomes the caller identity that
// handlers pass to the ledgers.
func Caller(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		if claims.Subject == "" {
			return fiber.NewError(http.StatusUnauthorized, "token has no subject")
		}

		c.Locals(callerLocal, claims.Subject)
		return c.Next()
	}
}

// CallerFrom returns the authenticated caller identity, or "" when the route
// is not behind Caller.
func CallerFrom(c *fiber.Ctx) string {
	caller, _ := c.Locals(callerLocal).(string)
	return caller
}

// SignCaller issues a bearer token for identity. A zero ttl issues a token
// without expiry.
func SignCaller(secret []byte, identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  identity,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Chain returns mw followed by h in a fresh slice.
func Chain(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}
