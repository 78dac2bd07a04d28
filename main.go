package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomie_server/config"
	"roomie_server/logging"
	"roomie_server/routes"
	"roomie_server/services"
	"roomie_server/socket"
	"roomie_server/store"
	"roomie_server/validation"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (store.DocumentStore, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.NewMemoryStore(services.Schemas, cfg.MaxTxAttempts), nil
	case "dynamo":
		client, err := store.InitializeDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		return store.NewDynamoStore(client, services.Schemas, cfg.MaxTxAttempts, logger), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func openS3(ctx context.Context, cfg *config.Config, logger logging.Logger) (*services.S3Service, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}
	client, err := services.NewS3Client(ctx, services.S3Options{
		Region:    cfg.AWSRegion,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
	})
	if err != nil {
		return nil, err
	}
	return services.NewS3Service(client, s3.NewPresignClient(client), cfg.S3Bucket, logger), nil
}

func run() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Env, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "initializing store", "backend", cfg.StoreBackend)
	docs, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	s3Service, err := openS3(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Initialize Services
	bus := services.NewEventBus(logger)
	watch := store.WatchOptions{Interval: cfg.Watch.PollInterval, Logger: logger}
	interactionService := services.NewInteractionService(docs, watch, logger)
	chatService := services.NewChatService(docs, bus, watch, logger)
	matchService := services.NewMatchService(docs, watch, logger)
	userProfileService := services.NewUserProfileService(docs, interactionService, s3Service, bus, validation.New(), logger)
	feedService := services.NewFeedService(docs, userProfileService, interactionService, cfg.Feed, logger)
	services.NewTriggers(docs, s3Service, logger).Register(bus)

	hub := socket.NewHub(ctx, interactionService, matchService, chatService, logger)
	socketServer := socket.NewSocketServer(hub, logger)
	go func() {
		if err := socketServer.Serve(); err != nil {
			logger.Error(ctx, "socket server stopped", "error", err)
		}
	}()
	defer socketServer.Close()

	r := mux.NewRouter()
	r.Use(routes.RequestLogger(logger))
	routes.RegisterRoutes(r)
	routes.RegisterUserProfileRoutes(r, userProfileService, logger)
	routes.RegisterFeedRoutes(r, feedService)
	routes.RegisterInteractionRoutes(r, interactionService, logger)
	routes.RegisterMatchRoutes(r, matchService)
	routes.RegisterChatRoutes(r, chatService, logger)
	r.PathPrefix("/socket.io/").Handler(socketServer)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-Id", "X-Request-Id"},
		AllowCredentials: true,
	}).Handler(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "starting server", "port", cfg.Port, "env", cfg.Env)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}

	bus.Wait()
	return nil
}
