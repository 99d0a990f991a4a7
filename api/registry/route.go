package registry

import ckanAPIHelper "github.com/geromet/CKAN/utils/api"

func RegisterRegistryAPIRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	registerTokenRoutes(apiHelper)
	registerModuleRoutes(apiHelper)
}
