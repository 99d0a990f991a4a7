// Package public serves the anonymous read side of the registry.
// Documents go out exactly as stored: releases ascending by version,
// publisher spellings intact, which is why responses are cached and
// served as rendered bytes instead of re-marshaled maps.
package public

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	version "github.com/hashicorp/go-version"
	"github.com/iancoleman/orderedmap"

	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
	"github.com/geromet/CKAN/utils/cachepack"
	redisManager "github.com/geromet/CKAN/utils/database/redis"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

func handleModuleDocument(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	allowedKeySet := make(map[string]struct{}, len(apiHelper.PublicAPIAllowedKeys))
	for _, k := range apiHelper.PublicAPIAllowedKeys {
		allowedKeySet[k] = struct{}{}
	}
	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		cacheKey := redisManager.CacheKeyBuilder(c, redisManager.NamespacePublicAccess)
		if cached, found, err := apiHelper.DBManager.Redis.GetCacheBytes(ctx, cacheKey); err == nil && found {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}

		doc, err := fetchOrderedDocument(ctx, apiHelper, c.Params("identifier"))
		if err != nil {
			return mapRouteError(c, err)
		}

		var resp any = doc
		if requestVersion := c.Query("version"); requestVersion != "" {
			resp, err = selectRelease(doc, requestVersion)
		} else if requestKey := c.Query("key"); requestKey != "" {
			resp, err = selectKeys(doc, requestKey, allowedKeySet)
		}
		if err != nil {
			return mapRouteError(c, err)
		}

		return sendCachedJSON(c, apiHelper, cacheKey, resp)
	}
}

func handleModuleReleases(apiHelper *ckanAPIHelper.RegistryRouterHelpers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		cacheKey := redisManager.CacheKeyBuilder(c, redisManager.NamespacePublicAccess)
		if cached, found, err := apiHelper.DBManager.Redis.GetCacheBytes(ctx, cacheKey); err == nil && found {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(cached)
		}

		doc, err := fetchOrderedDocument(ctx, apiHelper, c.Params("identifier"))
		if err != nil {
			return mapRouteError(c, err)
		}
		releases, ok := releasesOf(doc)
		if !ok {
			return ckanAPIHelper.ErrorInternal(c, "Stored module has no releases member")
		}

		return sendCachedJSON(c, apiHelper, cacheKey, releases)
	}
}

// fetchOrderedDocument returns a module document with member and
// release order preserved. Hot documents come out of redis as packed
// msgpack, cold ones from the rendered JSON in mongo, which is packed
// and cached on the way out.
func fetchOrderedDocument(ctx context.Context, apiHelper *ckanAPIHelper.RegistryRouterHelpers, identifier string) (*orderedmap.OrderedMap, error) {
	docKey := redisManager.BuildModuleDocKey(identifier)
	if packed, found, err := apiHelper.DBManager.Redis.GetCacheBytes(ctx, docKey); err == nil && found {
		if om, err := cachepack.Unpack(packed); err == nil {
			return om, nil
		}
		ckanLogger.Warnf("Dropping unreadable packed cache entry for %s", identifier)
		_ = apiHelper.DBManager.Redis.DeleteCache(ctx, docKey)
	}

	stored, err := apiHelper.DBManager.Mongo.GetModule(ctx, identifier)
	if err != nil {
		ckanLogger.Errorf("Failed to fetch module %s: %v", identifier, err)
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to get module")
	}
	if stored == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Module not found.")
	}

	packed, err := cachepack.PackJSON(stored.Rendered)
	if err != nil {
		ckanLogger.Errorf("Failed to pack module %s: %v", identifier, err)
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to decode module")
	}
	_ = apiHelper.DBManager.Redis.SetCacheBytes(ctx, docKey, packed, apiHelper.CacheTTL)

	om, err := cachepack.Unpack(packed)
	if err != nil {
		ckanLogger.Errorf("Failed to unpack module %s: %v", identifier, err)
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to decode module")
	}
	return om, nil
}

// selectRelease picks one release by version. The lookup is semantic,
// "1.2.0" finds a release spelled "1.2".
func selectRelease(doc *orderedmap.OrderedMap, rawVersion string) (any, error) {
	wanted, err := version.NewVersion(rawVersion)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid version: %s", rawVersion))
	}
	releases, ok := releasesOf(doc)
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "Module has no releases member")
	}
	for _, key := range releases.Keys() {
		parsed, err := version.NewVersion(key)
		if err != nil {
			continue
		}
		if parsed.Compare(wanted) == 0 {
			value, _ := releases.Get(key)
			return value, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Module has no release %s", rawVersion))
}

func selectKeys(doc *orderedmap.OrderedMap, requestKey string, allowedKeySet map[string]struct{}) (any, error) {
	keys := strings.Split(requestKey, ",")
	for _, key := range keys {
		if _, ok := allowedKeySet[key]; !ok {
			return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid request key: %s", key))
		}
	}
	if len(keys) == 1 {
		value, ok := doc.Get(keys[0])
		if !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Module has no %s member", keys[0]))
		}
		return value, nil
	}
	resp := orderedmap.New()
	resp.SetEscapeHTML(false)
	for _, key := range keys {
		if value, ok := doc.Get(key); ok {
			resp.Set(key, value)
		}
	}
	return resp, nil
}

// releasesOf tolerates both shapes the unpacked document can carry for
// nested objects.
func releasesOf(doc *orderedmap.OrderedMap) (*orderedmap.OrderedMap, bool) {
	value, ok := doc.Get("releases")
	if !ok {
		return nil, false
	}
	switch m := value.(type) {
	case *orderedmap.OrderedMap:
		return m, true
	case orderedmap.OrderedMap:
		return &m, true
	default:
		return nil, false
	}
}

// sendCachedJSON marshals once, caches the exact bytes and sends them,
// so cache hits replay byte-identical ordered output.
func sendCachedJSON(c *fiber.Ctx, apiHelper *ckanAPIHelper.RegistryRouterHelpers, cacheKey string, resp any) error {
	data, err := sonic.Marshal(resp)
	if err != nil {
		ckanLogger.Errorf("Failed to marshal public response: %v", err)
		return ckanAPIHelper.ErrorInternal(c, "Failed to render response")
	}
	_ = apiHelper.DBManager.Redis.SetCacheBytes(c.Context(), cacheKey, data, apiHelper.CacheTTL)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

func mapRouteError(c *fiber.Ctx, err error) error {
	if fErr, ok := err.(*fiber.Error); ok {
		return ckanAPIHelper.DataResponse[string](c, fErr.Code, fErr.Message, nil)
	}
	return ckanAPIHelper.ErrorInternal(c, err.Error())
}

func registerModuleRoutes(apiHelper *ckanAPIHelper.RegistryRouterHelpers) {
	group := apiHelper.Router.Group("/public")
	group.Get("/module/:identifier", handleModuleDocument(apiHelper))
	group.Get("/module/:identifier/releases", handleModuleReleases(apiHelper))
}
