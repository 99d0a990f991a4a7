package redis

import (
	"context"
	"fmt"

	ckanLogger "github.com/geromet/CKAN/utils/logger"

	"github.com/redis/go-redis/v9"
)

type RegistryRedisManager struct {
	Redis *redis.Client
}

func NewRedisClient(host string, port int, password string) *RegistryRedisManager {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       0,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		ckanLogger.Errorf("Failed to connect to Redis: %v", err)
	}
	return &RegistryRedisManager{
		Redis: client,
	}
}
