package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/TDNM88/hubchat/api"
	"github.com/TDNM88/hubchat/config"
	"github.com/TDNM88/hubchat/hub"
	"github.com/TDNM88/hubchat/policy"
	"github.com/TDNM88/hubchat/relay"
	"github.com/TDNM88/hubchat/session"
	"github.com/TDNM88/hubchat/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting hubchat...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Groq URL: %s", cfg.GroqURL)

	if cfg.GroqAPIKey == "" {
		log.Fatalf("GROQ_API_KEY environment variable is not set")
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize event hub
	eventHub := hub.NewHub()
	go eventHub.Run()
	wsServer := hub.NewServer(eventHub)

	// Initialize session manager (creates the default session)
	sessions, err := session.NewManager(db, cfg, eventHub)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize handlers
	relayH := relay.NewHandler(cfg, sessions, policyEngine, eventHub)
	apiH := api.NewHandler(sessions)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	relayH.RegisterRoutes(e)
	apiH.RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("hubchat started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down hubchat...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("hubchat stopped")
}
