package public

import (
	"github.com/gofiber/fiber/v2"

	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
	mongoManager "github.com/geromet/CKAN/utils/database/mongo"
	redisManager "github.com/geromet/CKAN/utils/database/redis"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

const maxPageSize = 200

type ModuleIndexData struct {
	Total    int64                       `json:"total"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
	Modules  []mongoManager.StoredModule `json:"modules"`
}

func handleModuleIndex(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		pageSize := c.QueryInt("page_size", apiHelper.PageSize)
		if pageSize < 1 || pageSize > maxPageSize {
			pageSize = apiHelper.PageSize
		}

		cacheKey := redisManager.CacheKeyBuilder(c, redisManager.NamespacePublicAccess)
		var cached any
		if found, err := apiHelper.DBManager.Redis.GetCache(ctx, cacheKey, &cached); err == nil && found {
			return c.JSON(cached)
		}

		modules, err := apiHelper.DBManager.Mongo.ListModules(ctx, page, pageSize)
		if err != nil {
			ckanLogger.Errorf("Failed to list modules: %v", err)
			return ckanAPIHelper.ErrorInternal(c, "Failed to list modules")
		}
		total, err := apiHelper.DBManager.Mongo.CountModules(ctx)
		if err != nil {
			ckanLogger.Errorf("Failed to count modules: %v", err)
			return ckanAPIHelper.ErrorInternal(c, "Failed to list modules")
		}
		if modules == nil {
			modules = []mongoManager.StoredModule{}
		}

		data := ModuleIndexData{Total: total, Page: page, PageSize: pageSize, Modules: modules}
		resp := ckanAPIHelper.NewResponse(fiber.StatusOK, "ok", &data)
		_ = apiHelper.DBManager.Redis.SetCache(ctx, cacheKey, resp, apiHelper.CacheTTL)
		return c.JSON(resp)
	}
}

func registerIndexRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	group := apiHelper.Router.Group("/public")
	group.Get("/modules", handleModuleIndex(apiHelper))
}
