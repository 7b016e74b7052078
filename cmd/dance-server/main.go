package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AIchemizt/dance-analysis-server/internal/api"
	"github.com/AIchemizt/dance-analysis-server/internal/config"
	"github.com/AIchemizt/dance-analysis-server/internal/db"
	"github.com/AIchemizt/dance-analysis-server/internal/pose/storage/sqlite"
	"github.com/AIchemizt/dance-analysis-server/internal/version"
)

var (
	listen      = flag.String("listen", "", "Listen address (defaults to PORT env var, then :8080)")
	dbPath      = flag.String("db", "dance_data.db", "Path to the sqlite database file")
	configPath  = flag.String("config", "", "Path to a tuning config JSON file")
	uploadDir   = flag.String("upload-dir", "", "Directory for staged landmark uploads (overrides config)")
	enableDebug = flag.Bool("enable-debug", false, "Attach /debug admin routes (sql console, database backup)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// listenAddr resolves the listen address from the flag, the PORT
// environment variable, or the default, in that order.
func listenAddr() string {
	if *listen != "" {
		return *listen
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

// loadConfig returns the tuning config from -config, or an empty config
// whose accessors fall back to the built-in defaults.
func loadConfig() *config.TuningConfig {
	if *configPath == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config %s: %v", *configPath, err)
	}
	return cfg
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("dance-server %s\n", version.String())
		return
	}

	// "dance-server migrate <action>" manages the schema without
	// starting the HTTP server
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], *dbPath)
		return
	}

	cfg := loadConfig()
	if *uploadDir != "" {
		cfg.UploadDir = uploadDir
	}
	log.Printf("analysis config: peak_threshold=%g min_consecutive=%d smoothing_window=%d upload_dir=%s",
		cfg.GetPeakVelocityThreshold(), cfg.GetMinConsecutiveFrames(), cfg.GetSmoothingWindow(), cfg.GetUploadDir())

	dbConn, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	store := sqlite.NewRunStore(dbConn.DB)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, cfg, nil, nil).ServeMux()
		if *enableDebug {
			dbConn.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    listenAddr(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("dance-server %s listening on %s (db: %s)", version.Version, server.Addr, *dbPath)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
