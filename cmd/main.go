package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/visaflow/visaflow-backend/internal/clients/gcp"
	"github.com/visaflow/visaflow-backend/internal/clients/redis"
	"github.com/visaflow/visaflow-backend/internal/db"
	"github.com/visaflow/visaflow-backend/internal/handlers"
	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/middleware"
	"github.com/visaflow/visaflow-backend/internal/observability"
	"github.com/visaflow/visaflow-backend/internal/repos"
	"github.com/visaflow/visaflow-backend/internal/server"
	"github.com/visaflow/visaflow-backend/internal/services"
	"github.com/visaflow/visaflow-backend/internal/utils"
)

const serviceName = "visaflow-backend"

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	allowedOrigins := utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log)

	// Tracing
	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: os.Getenv("APP_MODE"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	visaRepo := repos.NewVisaApplicationRepo(thePG, log)
	subRepo := repos.NewSubTravelerRepo(thePG, log)

	// Clients
	log.Info("Setting up Clients from main...")
	blobService, err := gcp.NewBlobService(log)
	if err != nil {
		log.Error("Could not init BlobService", "error", err)
		os.Exit(1)
	}
	cacheService, err := redis.NewCacheService(log)
	if err != nil {
		log.Warn("Could not init CacheService, continuing without cache", "error", err)
		cacheService = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	uploadService := services.NewUploadService(log, blobService)
	cleanupService := services.NewCleanupService(log, blobService)
	visaService := services.NewVisaService(thePG, log, visaRepo, subRepo, uploadService, cleanupService, cacheService)
	userService := services.NewUserService(thePG, log, userRepo)
	authService := services.NewAuthService(log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)

	// Handlers
	log.Info("Setting up handlers from main...")
	healthcheckHandler := handlers.NewHealthcheckHandler()
	visaHandler := handlers.NewVisaHandler(log, visaService)
	userHandler := handlers.NewUserHandler(log, userService, authService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	}
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        serviceName,
		AllowedOrigins:     origins,
		HealthcheckHandler: healthcheckHandler,
		VisaHandler:        visaHandler,
		UserHandler:        userHandler,
		AuthMiddleware:     authMiddleware,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
