package misc

import ckanAPIHelper "github.com/geromet/CKAN/utils/api"

func RegisterMiscRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	registerHealthRoutes(apiHelper.Router)
	registerVersionRoutes(apiHelper.Router)
}
