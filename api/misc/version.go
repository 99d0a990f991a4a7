package misc

import (
	"github.com/gofiber/fiber/v2"

	ckanVersion "github.com/geromet/CKAN/version"
)

func handleVersion() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":    "CKAN-Registry",
			"version": ckanVersion.Version,
		})
	}
}

func registerVersionRoutes(router fiber.Router) {
	router.Get("/version", handleVersion())
}
