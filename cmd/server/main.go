package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	shadowclient "github.com/guirra-diy/smarthome-bridge-go/internal/adapters/shadow"
	"github.com/guirra-diy/smarthome-bridge-go/internal/alexa"
	"github.com/guirra-diy/smarthome-bridge-go/internal/api"
	"github.com/guirra-diy/smarthome-bridge-go/internal/bus"
	"github.com/guirra-diy/smarthome-bridge-go/internal/config"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/auth"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/directives"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/events"
	"github.com/guirra-diy/smarthome-bridge-go/internal/core/shadow"
	"github.com/guirra-diy/smarthome-bridge-go/internal/database"
	"github.com/guirra-diy/smarthome-bridge-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}

	// Create repositories
	repos := database.NewRepositories(db, log)

	// Upstream clients
	oauthClient := alexa.NewOAuthClient(cfg.Alexa, log)
	gateway := alexa.NewGateway(cfg.Alexa, log)
	shadowStore := shadowclient.NewClient(cfg.Shadow, log)

	// Core services
	authManager := auth.NewManager(repos.Token, repos.User, oauthClient, log)
	synchronizer := shadow.NewSynchronizer(shadowStore, cfg.Shadow.StaleWindow, cfg.Shadow.ReachabilityWindow, log)
	directiveRouter := directives.NewRouter(repos.Device, synchronizer, authManager, log)
	translator := events.NewTranslator(repos.Device, synchronizer, authManager, gateway, log)

	// Event bus consumer
	consumer := bus.NewConsumer(cfg.MQTT, translator, log)
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start event consumer: ", err)
	}
	defer consumer.Close()

	// Initialize router
	router := api.NewRouter(cfg, db, repos, directiveRouter, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Infof("Starting smarthome bridge on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Info("Server exited")
}
