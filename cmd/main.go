/*
Package main is the entry point for the storefront gateway.

It is responsible for loading configuration, initializing the global logging system,
connecting the role database and the persisted local-state backend, wiring the remote
identity and cart services, setting up the HTTP server with the tab Manager, and
gracefully handling operating system interrupt signals (SIGINT, SIGTERM).
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/app/db"
	"storefront/internal/app/localstore"
	"storefront/internal/app/remote"
	"storefront/internal/app/roles"
	"storefront/internal/app/storage"
	"storefront/internal/app/tab"
	"storefront/internal/configs"
	"storefront/internal/handler"
	"storefront/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("identity_service", cfg.IdentityServiceURL).
		Str("cart_service", cfg.CartServiceURL).
		Bool("images_enabled", cfg.ImagesEnabled()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to role database")
	}
	defer pool.Close()

	var redisClient *redis.Client
	var locals localstore.Factory
	if cfg.RedisAddr != "" {
		redisClient, err = localstore.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		locals = localstore.NewRedisFactory(redisClient)
		logx.Info("Persisted tab state stored in Redis", "addr", cfg.RedisAddr)
	} else {
		locals = localstore.NewFileFactory(cfg.LocalStateDir)
		logx.Info("Persisted tab state stored on disk", "dir", cfg.LocalStateDir)
	}

	var signer storage.ImageSigner
	if cfg.ImagesEnabled() {
		signer, err = storage.NewImageSigner(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.S3BucketName,
			S3Endpoint:        cfg.S3Endpoint,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize image signer")
		}
	}

	httpClient := remote.NewHTTPClient(cfg.RemoteTimeout)

	// Initialize tab Manager
	manager := tab.NewManager(tab.Deps{
		Identity: remote.NewIdentityClient(httpClient, cfg.IdentityServiceURL),
		Roles:    roles.NewResolver(roles.NewPostgresRepository(pool)),
		Carts:    remote.NewCartClient(httpClient, cfg.CartServiceURL),
		Locals:   locals,
	}, signer)

	// Setup HTTP server and routes
	router, stopLimiters := handler.Router(&handler.AppDeps{Manager: manager, Config: cfg})
	defer stopLimiters()

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Storefront gateway starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	manager.Shutdown()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logx.Error(err, "Failed to close Redis client")
		}
	}

	logx.Info("Server gracefully stopped.")
}
