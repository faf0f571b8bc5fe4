package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nexochat/hub-api/internal/config"
	"github.com/nexochat/hub-api/internal/database"
	"github.com/nexochat/hub-api/internal/handler"
	"github.com/nexochat/hub-api/internal/middleware"
	"github.com/nexochat/hub-api/internal/models"
	"github.com/nexochat/hub-api/internal/repository"
	"github.com/nexochat/hub-api/internal/router"
	"github.com/nexochat/hub-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Message{}, &models.HiddenMessage{}, &models.Reaction{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	messageRepo := repository.NewMessageRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	userRepo := repository.NewUserRepository(db)

	registry := service.NewRegistry(logger)
	dispatcher := service.NewDispatcher(registry, redisClient, natsConn, cfg.EventChannel, cfg.LastMessageTTL, logger)

	accessService := service.NewAccessService(roomRepo, logger)
	messageService := service.NewMessageService(messageRepo, userRepo, roomRepo, accessService, dispatcher, dispatcher, validate, logger)
	reactionService := service.NewReactionService(reactionRepo, messageRepo, dispatcher, validate, logger)
	callService := service.NewCallService(dispatcher, logger)
	roomNotifier := service.NewRoomNotifier(roomRepo, dispatcher, validate, logger)
	hubService := service.NewHubService(registry, messageService, reactionService, callService, dispatcher, validate, logger)

	registry.OnUserOffline(callService.HandleUserOffline)

	hubHandler := handler.NewHubHandler(hubService, logger)
	roomHandler := handler.NewRoomHandler(messageService, accessService, roomNotifier, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		HubHandler:    hubHandler,
		RoomHandler:   roomHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	dispatcher.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
