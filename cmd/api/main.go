package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/stayhub/stayhub-backend/internal/config"
	"github.com/stayhub/stayhub-backend/internal/directory"
	"github.com/stayhub/stayhub-backend/internal/handler"
	"github.com/stayhub/stayhub-backend/internal/middleware"
	"github.com/stayhub/stayhub-backend/internal/repository"
	"github.com/stayhub/stayhub-backend/internal/routes"
	"github.com/stayhub/stayhub-backend/internal/service"
	pkgcache "github.com/stayhub/stayhub-backend/pkg/cache"
	pkges "github.com/stayhub/stayhub-backend/pkg/elasticsearch"
	"github.com/stayhub/stayhub-backend/pkg/jwt"
	pkglogger "github.com/stayhub/stayhub-backend/pkg/logger"
	pkgredis "github.com/stayhub/stayhub-backend/pkg/redis"
	pkgstorage "github.com/stayhub/stayhub-backend/pkg/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// @title           StayHub Messaging API
// @version         1.0
// @description     Messaging core for the StayHub property-booking platform
//
// @host            localhost:8080
// @BasePath        /api/v1
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Authorization header using the Bearer scheme. Example: "Bearer {token}"

// getConfigPath returns config file path based on APP_ENV environment variable
func getConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	dotenvFiles := config.LoadDotEnv(env)

	pkglogger.InitStructured(env)
	pkglogger.Info("APP_ENV=%s, loaded env files: %v", env, dotenvFiles)

	configPath := getConfigPath()
	pkglogger.Info("Loading config from: %s", configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// MySQL is the message log's system of record; nothing works without it
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	pkglogger.Info("Connected to MySQL")

	// Redis backs the directory cache; optional
	var cacheService pkgcache.Service
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
		)
		if err != nil {
			pkglogger.Warn("Failed to connect to Redis: %v (continuing without cache)", err)
		} else {
			cacheService = pkgcache.NewService(redisClient)
			pkglogger.Info("Connected to Redis")
		}
	}

	// Elasticsearch backs message search; the SQL fallback covers its absence
	var esClient *pkges.Client
	if cfg.Elasticsearch.Enabled && len(cfg.Elasticsearch.Addresses) > 0 {
		var esErr error
		esClient, esErr = pkges.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if esErr != nil {
			pkglogger.Warn("Elasticsearch connection failed: %v (continuing without ES)", esErr)
			esClient = nil
		} else {
			pkglogger.Info("Connected to Elasticsearch")
		}
	}

	// S3-compatible storage verifies attachment references; optional
	var s3Client *pkgstorage.S3Client
	if cfg.Storage.Enabled && cfg.Storage.Bucket != "" {
		var s3Err error
		s3Client, s3Err = pkgstorage.NewS3Client(pkgstorage.S3Config{
			Endpoint:        cfg.Storage.Endpoint,
			Region:          cfg.Storage.Region,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			CDNURL:          cfg.Storage.CDNURL,
			BasePath:        cfg.Storage.BasePath,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
		})
		if s3Err != nil {
			pkglogger.Warn("S3 storage init failed: %v (continuing without S3)", s3Err)
			s3Client = nil
		} else {
			pkglogger.Info("Connected to S3 storage")
		}
	}

	jwtManager := jwt.NewManager(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiresIn)*time.Second)

	// Directory service resolves participant names and reservation details.
	// Without it, summaries fall back to raw participant ids.
	var users directory.UserDirectory
	var reservations directory.ReservationDirectory
	if cfg.Directory.BaseURL != "" {
		dirClient := directory.NewClient(cfg.Directory.BaseURL, time.Duration(cfg.Directory.Timeout)*time.Second, cacheService)
		users, reservations = dirClient, dirClient
	}

	// Repositories
	indexRepo := repository.NewConversationIndexRepository(db)
	messageRepo := repository.NewMessageRepository(db, indexRepo)

	// Services
	searchService := service.NewSearchService(esClient, messageRepo)
	messageService := service.NewMessageService(messageRepo, s3Client, searchService)
	conversationService := service.NewConversationService(messageRepo, indexRepo, users, reservations)

	// Handlers
	messageHandler := handler.NewMessageHandler(messageService, searchService)
	conversationHandler := handler.NewConversationHandler(conversationService, messageService)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		ExposeHeaders:    []string{"X-Request-ID"},
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Metrics())
	router.Use(middleware.RequestLogger())

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health Check
	router.GET("/healthz", func(c *gin.Context) {
		components := gin.H{"database": "up"}
		status := http.StatusOK

		if sqlDB, dbErr := db.DB(); dbErr != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			components["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if cacheService != nil {
			components["redis"] = "up"
			if cacheService.Ping(c.Request.Context()) != nil {
				components["redis"] = "down"
			}
		}
		if esClient != nil {
			components["elasticsearch"] = "up"
			if esClient.Ping(c.Request.Context()) != nil {
				components["elasticsearch"] = "down"
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		c.JSON(status, gin.H{
			"status":     overall,
			"service":    "stayhub-backend",
			"components": components,
			"time":       time.Now().Unix(),
		})
	})

	routes.Setup(router, messageHandler, conversationHandler, jwtManager)

	// Report DB pool usage to Prometheus
	if sqlDB, err := db.DB(); err == nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				middleware.SetDBConnectionsActive(float64(sqlDB.Stats().InUse))
			}
		}()
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	pkglogger.Info("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	mysqlCfg, err := mysqldriver.ParseDSN(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	if mysqlCfg.Params == nil {
		mysqlCfg.Params = map[string]string{}
	}
	mysqlCfg.Params["time_zone"] = "'+00:00'"

	gormLogLevel := gormlogger.Warn
	if cfg.IsDevelopment() {
		gormLogLevel = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(mysqlCfg.FormatDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLogLevel),
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
