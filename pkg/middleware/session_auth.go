package middleware

import (
	"net/http"
	"strings"

	"github.com/Alwanly/service-fleet-control/internal/session"
	"github.com/Alwanly/service-fleet-control/internal/vault"
	"github.com/Alwanly/service-fleet-control/pkg/logger"
	"github.com/Alwanly/service-fleet-control/pkg/wrapper"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	IdentityContextKey = "identity"
	TokenContextKey    = "session_token"
)

// SessionAuth validates the bearer session token and places the resolved
// identity in the request locals. Every failure mode returns the same
// unauthorized response so callers cannot probe token structure.
func SessionAuth(sessions *session.Manager, log *logger.CanonicalLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			log.Debug("missing or malformed authorization header",
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(wrapper.ResponseFailed(http.StatusUnauthorized, "unauthorized", nil))
		}

		token := parts[1]
		identity, err := sessions.Validate(token)
		if err != nil {
			log.Debug("session token rejected",
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(wrapper.ResponseFailed(http.StatusUnauthorized, "unauthorized", nil))
		}

		c.Locals(IdentityContextKey, identity)
		c.Locals(TokenContextKey, token)
		return c.Next()
	}
}

// IdentityFromCtx returns the identity SessionAuth stored, if any.
func IdentityFromCtx(c *fiber.Ctx) (vault.Identity, bool) {
	identity, ok := c.Locals(IdentityContextKey).(vault.Identity)
	return identity, ok
}
