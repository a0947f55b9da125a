package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control header on GET responses
// that did not choose one themselves.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.Get(fiber.HeaderCacheControl) != "" {
			return err
		}
		if ttl := cacheControlFor(c.Path(), c.Response().StatusCode()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string, status int) string {
	switch {
	case status >= 500:
		return "no-store"
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"
	case path == "/metrics":
		return "no-cache"
	case path == "/soil":
		// Survey polygons change a few times a year.
		return "public, max-age=3600"
	case path == "/v1/map/config":
		return "public, max-age=300"
	case strings.HasPrefix(path, "/v1/clicks"):
		return "no-store"
	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=600"
	}
	return ""
}
