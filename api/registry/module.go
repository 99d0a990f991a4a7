package registry

import (
	"github.com/gofiber/fiber/v2"

	"github.com/geromet/CKAN/utils"
	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
)

// validatePublisherAgent rejects requests whose User-Agent lacks the
// configured keyword. Publisher tooling identifies itself, anything
// else is turned away before token verification runs.
func validatePublisherAgent(requiredAgentKeyword string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userAgent := c.Get("User-Agent")
		if requiredAgentKeyword != "" && !utils.StringContains(userAgent, requiredAgentKeyword) {
			return ckanAPIHelper.ErrorForbidden(c, "User-Agent not allowed")
		}
		return c.Next()
	}
}

func handleModuleUpload(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		publisher, _ := c.Locals("publisher").(string)
		result, _ := apiHelper.ModuleHandler.HandleModuleUpload(c.Context(), c.Body(), utils.IngestSourceAPI, publisher)
		return ckanAPIHelper.IngestResponse(c, result)
	}
}

func handleModuleDelete(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		publisher, _ := c.Locals("publisher").(string)
		result, _ := apiHelper.ModuleHandler.HandleModuleDelete(c.Context(), c.Params("identifier"), publisher)
		return ckanAPIHelper.IngestResponse(c, result)
	}
}

func registerModuleRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	group := apiHelper.Router.Group("/registry/module",
		validatePublisherAgent(apiHelper.PublisherUserAgent),
		apiHelper.TokenHandler.VerifyPublisherToken)
	group.Post("/upload", handleModuleUpload(apiHelper))
	group.Delete("/:identifier", handleModuleDelete(apiHelper))
}
