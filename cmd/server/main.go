package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cartdotfun/settlement-backend/internal/app"
	"github.com/cartdotfun/settlement-backend/internal/config"
	"github.com/cartdotfun/settlement-backend/internal/db"
	"github.com/cartdotfun/settlement-backend/internal/router"
)

func main() {
	log.Println("🚀 Starting settlement backend...")

	// Load config
	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db.InitDB()

	// Build engine, repositories, services and recover persisted state
	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize service container: %v", err)
	}
	defer container.Shutdown()

	r := router.SetupRouter(container)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	log.Printf("✅ Listening on %s", addr)

	// Close NATS and treasury connections on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Printf("⚠️ Received %s, shutting down", sig)
		container.Shutdown()
		os.Exit(0)
	}()

	if err := r.Run(addr); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
