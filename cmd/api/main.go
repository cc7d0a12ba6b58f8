package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foodgram/backend/config"
	"github.com/foodgram/backend/internal/api"
	"github.com/foodgram/backend/internal/database"
	"github.com/foodgram/backend/internal/middleware"
	"github.com/foodgram/backend/internal/router"
	"github.com/foodgram/backend/internal/server"
	"github.com/foodgram/backend/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis is optional; without it recipe writes are not rate limited.
	redisClient, err := database.NewRedisClient(cfg)
	if err != nil {
		log.Printf("Redis unavailable, rate limiting disabled: %v", err)
		redisClient = nil
	}

	// S3 is optional; without it images are stored under the media dir.
	s3Config, err := config.NewS3Config(context.Background())
	if err != nil {
		log.Printf("S3 unavailable, storing images in %s: %v", cfg.MediaDir, err)
		s3Config = nil
	}

	authService := service.NewAuthService(db.DB, cfg.JWTSecret)
	followService := service.NewFollowService(db.DB)
	catalogService := service.NewCatalogService(db.DB)
	recipeService := service.NewRecipeService(db.DB)
	membershipService := service.NewMembershipService(db.DB)
	shoppingListService := service.NewShoppingListService(db.DB)
	imageService := service.NewImageService(s3Config, cfg.MediaDir)
	rateLimiter := middleware.NewRecipeWriteRateLimiter(redisClient)

	authHandler := api.NewAuthHandler(authService)
	userHandler := api.NewUserHandler(authService, followService)
	catalogHandler := api.NewCatalogHandler(catalogService)
	recipeHandler := api.NewRecipeHandler(
		recipeService, membershipService, shoppingListService,
		imageService, authService, rateLimiter,
	)

	engine := router.SetupRouter(authHandler, userHandler, catalogHandler, recipeHandler)
	srv := server.New(engine, cfg.ServerPort)

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.ServerPort)
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
