/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the reservation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load optional TOML config
  2. Initialize SQLite store
  3. Create admission controller and (optionally) the hold sweeper
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to TOML config file (optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/reservations.db"

  # Run from a config file with the sweeper enabled
  ./server -config=./config.toml

SEE ALSO:
  - config/config.go: File format and defaults
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atelier/reservation-engine/api"
	"github.com/atelier/reservation-engine/config"
	"github.com/atelier/reservation-engine/reservation"
	"github.com/atelier/reservation-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "path to TOML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Admission controller over the store
	clock := reservation.SystemClock{}
	controller := reservation.NewController(store, store, clock)

	// Optional stale-hold sweeper
	var sweeper *reservation.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = reservation.NewSweeper(controller, store, clock,
			cfg.Sweep.HoldTTL.Duration, cfg.Sweep.Interval.Duration)
		if err := sweeper.Start(); err != nil {
			log.Fatalf("Failed to start hold sweeper: %v", err)
		}
		log.Printf("Hold sweeper running every %s (TTL %s)",
			cfg.Sweep.Interval.Duration, cfg.Sweep.HoldTTL.Duration)
	}

	// Create router
	handler := api.NewHandler(controller, store)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	log.Println("Server stopped")
}
