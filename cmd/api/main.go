package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/rentalhub/rental-backend/internal/config"
	"github.com/rentalhub/rental-backend/internal/handler"
	"github.com/rentalhub/rental-backend/internal/middleware"
	"github.com/rentalhub/rental-backend/internal/migration"
	"github.com/rentalhub/rental-backend/internal/presence"
	"github.com/rentalhub/rental-backend/internal/repository"
	"github.com/rentalhub/rental-backend/internal/room"
	"github.com/rentalhub/rental-backend/internal/routes"
	"github.com/rentalhub/rental-backend/internal/service"
	"github.com/rentalhub/rental-backend/internal/ws"
	pkgcache "github.com/rentalhub/rental-backend/pkg/cache"
	"github.com/rentalhub/rental-backend/pkg/jwt"
	pkglogger "github.com/rentalhub/rental-backend/pkg/logger"
	pkgredis "github.com/rentalhub/rental-backend/pkg/redis"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const redisKeyPrefix = "chat"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath(env string) string {
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	dotenvFiles := config.LoadDotEnv()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath(env)
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	config.LogResolved(cfg)

	// MySQL
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")
	if err := migration.Run(db); err != nil {
		pkglogger.Warn("Migration warning: %v", err)
	}

	// Redis is optional unless presence is shared across instances
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
		)
		if err != nil {
			if cfg.Chat.PresenceBackend == config.PresenceRedis {
				log.Fatalf("Failed to connect to Redis: %v", err)
			}
			pkglogger.Warn("Failed to connect to Redis: %v (continuing without Redis)", err)
			redisClient = nil
		} else {
			pkglogger.Info("Connected to Redis")
		}
	}

	// Presence and room membership
	var (
		registry  presence.Registry
		roomStore room.Store
	)
	if cfg.Chat.PresenceBackend == config.PresenceRedis && redisClient != nil {
		registry = presence.NewRedisRegistry(redisClient, redisKeyPrefix, time.Duration(cfg.Chat.PresenceTTL)*time.Second)
		roomStore = room.NewRedisStore(redisClient, redisKeyPrefix)
		pkglogger.Info("Presence backend: redis")
	} else {
		registry = presence.NewMemoryRegistry()
		roomStore = room.NewMemoryStore()
		pkglogger.Info("Presence backend: memory")
	}

	// Session relay between instances needs Redis
	var hubRedis *redis.Client
	if cfg.Chat.PresenceBackend == config.PresenceRedis {
		hubRedis = redisClient
	}
	wsHub := ws.NewHub(hubRedis)
	go wsHub.Run()

	// Repositories
	var cacheService pkgcache.Service
	if redisClient != nil {
		cacheService = pkgcache.NewService(redisClient)
	}
	userRepo := repository.NewCachedUserRepository(repository.NewUserRepository(db), cacheService)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// Core
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	rooms := room.NewManager(convRepo, roomStore, registry, wsHub)
	chatService := service.NewChatService(userRepo, convRepo, msgRepo, rooms, cfg.Chat.MaxMessageLength)
	dispatcher := ws.NewDispatcher(jwtManager, userRepo, registry, rooms, chatService)

	// Router
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     splitAndTrim(cfg.CORS.AllowOrigins, ","),
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:           12 * time.Hour,
	}))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	routes.Setup(router, routes.Handlers{
		Conversation: handler.NewConversationHandler(chatService, registry),
		WS: handler.NewWSHandler(wsHub, dispatcher,
			cfg.WebSocket.AllowedOrigins, cfg.WebSocket.SendBuffer, cfg.WebSocket.MaxMessageSize),
		Health: handler.NewHealthHandler(db, redisClient),
	}, jwtManager, redisClient, cfg.RateLimit.RequestsPerMinute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go reportDBStats(ctx, db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		pkglogger.Info("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	pkglogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		pkglogger.Error("Server shutdown error: %v", err)
	}
	wsHub.Stop()
	if redisClient != nil {
		redisClient.Close() //nolint:errcheck
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close() //nolint:errcheck
	}
	pkglogger.Info("Server stopped")
}

// initDB MySQL connection setup
func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+00:00'"

	logLevel := gormlogger.Warn
	if !cfg.IsProduction() {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	return db, nil
}

// reportDBStats feeds the connection pool gauge until ctx is done
func reportDBStats(ctx context.Context, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			middleware.SetDBConnectionsInUse(sqlDB.Stats().InUse)
		case <-ctx.Done():
			return
		}
	}
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
