package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	ckanApi "github.com/geromet/CKAN/api"
	ckanConfig "github.com/geromet/CKAN/config"
	ckanAPIHelper "github.com/geromet/CKAN/utils/api"
	"github.com/geromet/CKAN/utils/cachepack"
	ckanDatabaseManager "github.com/geromet/CKAN/utils/database"
	ckanMongo "github.com/geromet/CKAN/utils/database/mongo"
	ckanRedis "github.com/geromet/CKAN/utils/database/redis"
	ckanHandler "github.com/geromet/CKAN/utils/handler"
	"github.com/geromet/CKAN/utils/inbox"
	ckanLogger "github.com/geromet/CKAN/utils/logger"
	"github.com/geromet/CKAN/utils/notify"
	"github.com/geromet/CKAN/utils/syncer"
	"github.com/geromet/CKAN/utils/upstream"
	ckanVersion "github.com/geromet/CKAN/version"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	var logFile *os.File
	var loggerWriter io.Writer = os.Stdout
	if ckanConfig.Cfg.Backend.MainLogFile != "" {
		var err error
		logFile, err = os.OpenFile(ckanConfig.Cfg.Backend.MainLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			mainLogger := ckanLogger.NewLogger("Main", ckanConfig.Cfg.Backend.LogLevel, os.Stdout)
			mainLogger.Errorf("failed to open main log file: %v", err)
			os.Exit(1)
		}
		loggerWriter = io.MultiWriter(os.Stdout, logFile)
		defer func(logFile *os.File) {
			_ = logFile.Close()
		}(logFile)
	}
	mainLogger := ckanLogger.NewLogger("Main", ckanConfig.Cfg.Backend.LogLevel, loggerWriter)
	mainLogger.Infof(fmt.Sprintf("========================= CKAN Registry Backend %s =========================", ckanVersion.Version))

	if err := cachepack.RegisterOrderedDocExt(); err != nil {
		mainLogger.Errorf("Failed to register msgpack ext coders: %v", err)
		os.Exit(1)
	}

	mongoManager, err := ckanMongo.NewMongoDBManager(
		context.Background(),
		ckanConfig.Cfg.MongoDB.URL,
		ckanConfig.Cfg.MongoDB.DB,
		ckanConfig.Cfg.MongoDB.Modules,
	)
	if err != nil {
		mainLogger.Errorf("Failed to init MongoDB: %v", err)
		os.Exit(1)
	}
	redisClient := ckanRedis.NewRedisClient(
		ckanConfig.Cfg.Redis.Host,
		ckanConfig.Cfg.Redis.Port,
		ckanConfig.Cfg.Redis.Password,
	)
	dbMgr := ckanDatabaseManager.NewRegistryDBManager(redisClient, mongoManager)

	notifier, err := notify.NewNotifier(
		ckanConfig.Cfg.Proxy,
		ckanConfig.Cfg.Notify.Webhooks,
		time.Duration(ckanConfig.Cfg.Notify.TimeoutSeconds)*time.Second,
		ckanLogger.NewLogger("Notify", ckanConfig.Cfg.Backend.LogLevel, loggerWriter),
	)
	if err != nil {
		mainLogger.Errorf("Failed to init webhook notifier: %v", err)
		os.Exit(1)
	}
	moduleHandler := ckanHandler.NewModuleHandler(dbMgr, notifier,
		ckanLogger.NewLogger("ModuleHandler", ckanConfig.Cfg.Backend.LogLevel, loggerWriter))

	publishers := make(map[string]string, len(ckanConfig.Cfg.Auth.Publishers))
	for _, p := range ckanConfig.Cfg.Auth.Publishers {
		publishers[p.Name] = p.TokenHash
	}
	tokenHandler := ckanAPIHelper.NewTokenHandler(
		redisClient.Redis,
		ckanConfig.Cfg.Auth.JWTSecret,
		time.Duration(ckanConfig.Cfg.Auth.TokenTTLMinutes)*time.Minute,
		publishers,
	)

	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
	})
	allowedOrigins := make(map[string]struct{})
	for _, origin := range ckanConfig.Cfg.Backend.AllowCORS {
		allowedOrigins[origin] = struct{}{}
	}
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			_, ok := allowedOrigins[origin]
			return ok
		},
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	if ckanConfig.Cfg.Backend.AccessLog != "" {
		loggerConfig := logger.Config{Format: ckanConfig.Cfg.Backend.AccessLog}
		if ckanConfig.Cfg.Backend.AccessLogPath != "" {
			accessLogFile, err := os.OpenFile(ckanConfig.Cfg.Backend.AccessLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				mainLogger.Errorf("Failed to open access log file: %v", err)
				os.Exit(1)
			}
			defer func(accessLogFile *os.File) {
				_ = accessLogFile.Close()
			}(accessLogFile)
			loggerConfig.Output = accessLogFile
		}
		app.Use(logger.New(loggerConfig))
	}

	pageSize := ckanConfig.Cfg.Registry.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	cacheTTL := time.Duration(ckanConfig.Cfg.Registry.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 300 * time.Second
	}
	apiHelper := ckanAPIHelper.NewRegistryRouterHelpers(
		app,
		dbMgr,
		moduleHandler,
		tokenHandler,
		ckanConfig.Cfg.Registry.PublicAPIAllowedKeys,
		ckanConfig.Cfg.Auth.PublisherUserAgent,
		pageSize,
		cacheTTL,
	)
	ckanApi.RegisterRoutes(apiHelper)
	if ckanConfig.Cfg.Backend.Debug {
		ckanApi.RegisterDebugRoutes(apiHelper)
	}

	ctx := context.Background()
	if ckanConfig.Cfg.Inbox.Dir != "" {
		watcher := inbox.NewWatcher(ckanConfig.Cfg.Inbox.Dir, moduleHandler,
			ckanLogger.NewLogger("Inbox", ckanConfig.Cfg.Backend.LogLevel, loggerWriter))
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				mainLogger.Errorf("Inbox watcher stopped: %v", err)
			}
		}()
	}
	if ckanConfig.Cfg.Upstream.URL != "" {
		upstreamClient := upstream.NewUpstreamRegistryClient(
			ckanConfig.Cfg.Upstream.URL,
			ckanConfig.Cfg.Upstream.Token,
		)
		moduleSyncer := syncer.NewSyncer(
			upstreamClient,
			moduleHandler,
			time.Duration(ckanConfig.Cfg.Upstream.SyncIntervalMinutes)*time.Minute,
			ckanConfig.Cfg.Upstream.Identifiers,
			ckanLogger.NewLogger("Syncer", ckanConfig.Cfg.Backend.LogLevel, loggerWriter),
		)
		go func() {
			if err := moduleSyncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				mainLogger.Errorf("Upstream syncer stopped: %v", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", ckanConfig.Cfg.Backend.Host, ckanConfig.Cfg.Backend.Port)
	if ckanConfig.Cfg.Backend.SSL {
		mainLogger.Infof("SSL enabled, starting HTTPS server at %s", addr)
		if err := app.ListenTLS(addr, ckanConfig.Cfg.Backend.SSLCert, ckanConfig.Cfg.Backend.SSLKey); err != nil {
			mainLogger.Errorf("failed to start HTTPS server: %v", err)
			os.Exit(1)
		}
	} else {
		mainLogger.Infof("Starting HTTP server at %s", addr)
		if err := app.Listen(addr); err != nil {
			mainLogger.Errorf("failed to start HTTP server: %v", err)
			os.Exit(1)
		}
	}
}
