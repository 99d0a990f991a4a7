package registry

import (
	"github.com/gofiber/fiber/v2"

	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

type tokenRequest struct {
	Publisher string `json:"publisher"`
	Secret    string `json:"secret"`
}

type tokenData struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func handleIssueToken(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req tokenRequest
		if err := c.BodyParser(&req); err != nil {
			return ckanAPIHelper.ErrorBadRequest(c, "Invalid request body")
		}
		if req.Publisher == "" || req.Secret == "" {
			return ckanAPIHelper.ErrorBadRequest(c, "publisher and secret are required")
		}
		token, err := apiHelper.TokenHandler.IssueToken(req.Publisher, req.Secret)
		if err != nil {
			// One message for every failure mode, so callers cannot
			// probe which publisher names exist.
			ckanLogger.Warnf("Token request rejected for publisher %s: %v", req.Publisher, err)
			return ckanAPIHelper.ErrorUnauthorized(c, "invalid publisher credentials")
		}
		data := tokenData{
			Token:     token,
			ExpiresIn: int64(apiHelper.TokenHandler.TokenTTL.Seconds()),
		}
		return ckanAPIHelper.SuccessResponse(c, "Token issued", &data)
	}
}

func handleRevokeTokens(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		publisher, _ := c.Locals("publisher").(string)
		if err := apiHelper.TokenHandler.RevokePublisherSessions(publisher); err != nil {
			return ckanAPIHelper.ErrorInternal(c, "failed to revoke tokens")
		}
		return ckanAPIHelper.SuccessResponse[string](c, "tokens revoked", nil)
	}
}

func registerTokenRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	group := apiHelper.Router.Group("/registry")
	group.Post("/token", handleIssueToken(apiHelper))
	group.Delete("/token", apiHelper.TokenHandler.VerifyPublisherToken, handleRevokeTokens(apiHelper))
}
