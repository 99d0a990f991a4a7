package api

import (
	"github.com/geromet/CKAN/api/misc"
	"github.com/geromet/CKAN/api/public"
	"github.com/geromet/CKAN/api/registry"
	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
)

func RegisterRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	misc.RegisterMiscRoutes(apiHelper)
	public.RegisterPublicAPIRoutes(apiHelper)
	registry.RegisterRegistryAPIRoutes(apiHelper)
}
