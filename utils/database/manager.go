package database

import (
	mongoManager "github.com/geromet/CKAN/utils/database/mongo"
	redisManager "github.com/geromet/CKAN/utils/database/redis"
)

type RegistryDBManager struct {
	Redis *redisManager.RegistryRedisManager
	Mongo *mongoManager.MongoDBManager
}

func NewRegistryDBManager(redis *redisManager.RegistryRedisManager, mongo *mongoManager.MongoDBManager) *RegistryDBManager {
	return &RegistryDBManager{
		Redis: redis,
		Mongo: mongo,
	}
}
