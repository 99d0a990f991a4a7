package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/geromet/CKAN/utils/database"
	ckanHandler "github.com/geromet/CKAN/utils/handler"
)

// RegistryRouterHelpers carries everything route handlers need, built
// once in main and passed to every register function.
type RegistryRouterHelpers struct {
	Router               fiber.Router
	DBManager            *database.RegistryDBManager
	ModuleHandler        *ckanHandler.ModuleHandler
	TokenHandler         *TokenHandler
	PublicAPIAllowedKeys []string
	PublisherUserAgent   string
	PageSize             int
	CacheTTL             time.Duration
}

func NewRegistryRouterHelpers(
	router fiber.Router,
	dbManager *database.RegistryDBManager,
	moduleHandler *ckanHandler.ModuleHandler,
	tokenHandler *TokenHandler,
	publicAPIAllowedKeys []string,
	publisherUserAgent string,
	pageSize int,
	cacheTTL time.Duration,
) *RegistryRouterHelpers {
	return &RegistryRouterHelpers{
		Router:               router,
		DBManager:            dbManager,
		ModuleHandler:        moduleHandler,
		TokenHandler:         tokenHandler,
		PublicAPIAllowedKeys: publicAPIAllowedKeys,
		PublisherUserAgent:   publisherUserAgent,
		PageSize:             pageSize,
		CacheTTL:             cacheTTL,
	}
}

type GenericResponse[T any] struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    *T     `json:"data,omitempty"`
}

type PublisherClaims struct {
	Publisher string `json:"publisher"`
	TokenID   string `json:"tokenId"`
	jwt.RegisteredClaims
}

// TokenHandler issues and verifies publisher bearer tokens. Tokens are
// JWTs backed by a redis session entry, so revocation works without
// waiting for expiry.
type TokenHandler struct {
	RedisClient *redis.Client
	JWTSecret   string
	TokenTTL    time.Duration
	publishers  map[string]string
}
