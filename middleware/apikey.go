package middleware

import "github.com/gofiber/fiber/v2"

// RequireAPIKey guards the event cache endpoints with a shared key in the
// X-API-Key header. An empty configured key disables the check, matching
// the open local/dev posture of the webhook receiver.
func RequireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		if c.Get("X-API-Key") != key {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}
		return c.Next()
	}
}
