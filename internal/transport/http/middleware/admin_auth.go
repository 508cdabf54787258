package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"go.uber.org/zap"
)

// AdminAuth accepts "Authorization: Bearer <token>" or a "token" query/form
// value. With an empty token every request is refused.
func AdminAuth(log *zap.SugaredLogger, token string) fiber.Handler {
	valid := func(key string) bool {
		return token != "" && subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1
	}

	return keyauth.New(keyauth.Config{
		Next: func(c *fiber.Ctx) bool {
			return valid(c.FormValue("token"))
		},
		KeyLookup:  "header:" + fiber.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if valid(key) {
				return true, nil
			}
			log.Warnw("admin auth rejected", "path", c.Path(), "ip", c.IP())
			return false, keyauth.ErrMissingOrMalformedAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{"code": "UNAUTHORIZED", "message": err.Error()},
			})
		},
	})
}
