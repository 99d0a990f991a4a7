package public

import ckanAPIHelper "github.com/geromet/CKAN/utils/api"

func RegisterPublicAPIRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	registerIndexRoutes(apiHelper)
	registerModuleRoutes(apiHelper)
}
