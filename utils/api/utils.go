package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/geromet/CKAN/utils"
	redisManager "github.com/geromet/CKAN/utils/database/redis"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
)

// ====================== Response Functions ======================

func NewResponse[T any](status int, message string, data *T) *GenericResponse[T] {
	return &GenericResponse[T]{
		Status:  status,
		Message: message,
		Data:    data,
	}
}

func DataResponse[T any](c *fiber.Ctx, status int, message string, data *T) error {
	return c.Status(status).JSON(NewResponse(status, message, data))
}

func ResponseWithStruct[T any](c *fiber.Ctx, status int, data T) error {
	return c.Status(status).JSON(data)
}

// IngestResponse sends an ingest pipeline result with its own status.
func IngestResponse(c *fiber.Ctx, result *utils.IngestResult) error {
	status := fiber.StatusOK
	if result.Status != nil {
		status = *result.Status
	}
	return c.Status(status).JSON(result)
}

// ====================== Error Response Functions ======================

// ErrorBadRequest returns a 400 Bad Request response
func ErrorBadRequest(c *fiber.Ctx, message string) error {
	return DataResponse[string](c, fiber.StatusBadRequest, message, nil)
}

// ErrorUnauthorized returns a 401 Unauthorized response
func ErrorUnauthorized(c *fiber.Ctx, message string) error {
	return DataResponse[string](c, fiber.StatusUnauthorized, message, nil)
}

// ErrorForbidden returns a 403 Forbidden response
func ErrorForbidden(c *fiber.Ctx, message string) error {
	return DataResponse[string](c, fiber.StatusForbidden, message, nil)
}

// ErrorNotFound returns a 404 Not Found response
func ErrorNotFound(c *fiber.Ctx, message string) error {
	return DataResponse[string](c, fiber.StatusNotFound, message, nil)
}

// ErrorInternal returns a 500 Internal Server Error response
func ErrorInternal(c *fiber.Ctx, message string) error {
	return DataResponse[string](c, fiber.StatusInternalServerError, message, nil)
}

// SuccessResponse returns a 200 OK response with optional data
func SuccessResponse[T any](c *fiber.Ctx, message string, data *T) error {
	return DataResponse(c, fiber.StatusOK, message, data)
}

// ====================== Publisher Token Functions ======================

func NewTokenHandler(redisClient *redis.Client, jwtSecret string, tokenTTL time.Duration, publishers map[string]string) *TokenHandler {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &TokenHandler{
		RedisClient: redisClient,
		JWTSecret:   jwtSecret,
		TokenTTL:    tokenTTL,
		publishers:  publishers,
	}
}

func (h *TokenHandler) IssueToken(publisher, secret string) (string, error) {
	hash, ok := h.publishers[publisher]
	if !ok {
		return "", fmt.Errorf("unknown publisher: %s", publisher)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		return "", fmt.Errorf("invalid publisher secret")
	}
	tokenID := uuid.NewString()
	err := h.RedisClient.Set(context.Background(), redisManager.BuildPublisherSessionKey(publisher, tokenID), "1", h.TokenTTL).Err()
	if err != nil {
		return "", err
	}
	claims := PublisherClaims{
		Publisher: publisher,
		TokenID:   tokenID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.JWTSecret))
	if err != nil {
		return "", err
	}
	return signed, nil
}

func (h *TokenHandler) VerifyPublisherToken(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if auth == "" {
		return DataResponse[string](c, fiber.StatusUnauthorized, "missing token", nil)
	}
	tokenStr := auth
	if strings.HasPrefix(tokenStr, "Bearer ") {
		tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &PublisherClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		ckanLogger.Warnf("Invalid publisher token: %v", err)
		return DataResponse[string](c, fiber.StatusUnauthorized, "invalid token", nil)
	}
	claims, ok := parsed.Claims.(*PublisherClaims)
	if !ok {
		ckanLogger.Warnf("Invalid publisher claims")
		return DataResponse[string](c, fiber.StatusUnauthorized, "invalid claims", nil)
	}

	key := redisManager.BuildPublisherSessionKey(claims.Publisher, claims.TokenID)
	exists, err := h.RedisClient.Exists(context.Background(), key).Result()
	if err != nil {
		ckanLogger.Errorf("Redis error checking publisher session: %v", err)
		return DataResponse[string](c, fiber.StatusUnauthorized, "invalid session", nil)
	}
	if exists == 0 {
		return DataResponse[string](c, fiber.StatusUnauthorized, "invalid session", nil)
	}

	c.Locals("publisher", claims.Publisher)
	return c.Next()
}

// RevokePublisherSessions drops every live token for one publisher.
func (h *TokenHandler) RevokePublisherSessions(publisher string) error {
	ctx := context.Background()
	var cursor uint64
	pattern := redisManager.BuildPublisherSessionPattern(publisher)
	for {
		keys, newCursor, err := h.RedisClient.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			ckanLogger.Errorf("Redis scan error: %v", err)
			return err
		}
		if len(keys) > 0 {
			if err := h.RedisClient.Del(ctx, keys...).Err(); err != nil {
				ckanLogger.Errorf("Redis del error: %v", err)
				return err
			}
		}
		cursor = newCursor
		if cursor == 0 {
			break
		}
	}
	return nil
}
