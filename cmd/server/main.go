package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vectorlite/vectorlite"
	"github.com/vectorlite/vectorlite/pkg/api/rest"
	"github.com/vectorlite/vectorlite/pkg/api/rest/middleware"
	"github.com/vectorlite/vectorlite/pkg/config"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("vectorlite server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Println("Opening vectorlite database...")
	db, err := vectorlite.Open(cfg.Database.DataDir, vectorlite.DefaultConfig(cfg.HNSW.Dimensions, vectorlite.Cosine))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	restConfig := rest.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSEnabled: cfg.Server.CORSEnabled,
		CORSOrigins: cfg.Server.CORSOrigins,
		Auth: middleware.AuthConfig{
			Enabled:     cfg.Server.AuthEnabled,
			JWTSecret:   cfg.Server.JWTSecret,
			PublicPaths: cfg.Server.PublicPaths,
			AdminPaths:  cfg.Server.AdminPaths,
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.Server.RateLimitEnabled,
			RequestsPerSec: cfg.Server.RateLimitPerSec,
			Burst:          cfg.Server.RateLimitBurst,
			PerIP:          cfg.Server.RateLimitPerIP,
		},
	}

	server, err := rest.NewServer(restConfig, db)
	if err != nil {
		log.Fatalf("Failed to create REST server: %v", err)
	}

	printStartupInfo(cfg)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Server is ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping server: %v", err)
	}
	if err := db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Server stopped. Goodbye!")
}

func loadConfig(configFile string) *config.Config {
	if configFile != "" {
		log.Printf("Warning: config file support not yet implemented, using environment variables")
	}
	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║   __     __        _              ___ _ _                 ║
║   \ \   / /__  ___| |_ ___  _ __ | (_) |_ ___              ║
║    \ \ / / _ \/ __| __/ _ \| '__|| | | __/ _ \             ║
║     \ V /  __/ (__| || (_) | |   | | | ||  __/             ║
║      \_/ \___|\___|\__\___/|_|   |_|_|\__\___|             ║
║                                                           ║
║   Embeddable approximate-nearest-neighbor vector store    ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            REST API Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Auth Enabled:     %-35v ║\n", cfg.Server.AuthEnabled)
	fmt.Printf("║ CORS Enabled:     %-35v ║\n", cfg.Server.CORSEnabled)
	fmt.Printf("║ Rate Limiting:    %-35v ║\n", cfg.Server.RateLimitEnabled)
	fmt.Printf("║ API Docs:         %-35s ║\n", fmt.Sprintf("http://%s/docs", cfg.Server.Address()))
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               HNSW Defaults                            ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ M:                %-35d ║\n", cfg.HNSW.M)
	fmt.Printf("║ efConstruction:   %-35d ║\n", cfg.HNSW.EfConstruction)
	fmt.Printf("║ efSearch:         %-35d ║\n", cfg.HNSW.DefaultEfSearch)
	fmt.Printf("║ Dimensions:       %-35d ║\n", cfg.HNSW.Dimensions)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Cache Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Cache.Enabled)
	fmt.Printf("║ Capacity:         %-35d ║\n", cfg.Cache.Capacity)
	fmt.Printf("║ TTL:              %-35s ║\n", cfg.Cache.TTL)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("vectorlite server - embeddable ANN vector database")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vectorlite-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Accepted but not read; settings come from environment variables")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  VECTOR_HOST                Server host")
	fmt.Println("  VECTOR_PORT                Server port")
	fmt.Println("  VECTOR_REQUEST_TIMEOUT     Request timeout (e.g., 30s)")
	fmt.Println("  VECTOR_ENABLE_TLS          Enable TLS (true/false)")
	fmt.Println("  VECTOR_TLS_CERT            TLS certificate file")
	fmt.Println("  VECTOR_TLS_KEY             TLS key file")
	fmt.Println("  VECTOR_AUTH_ENABLED        Enable JWT auth (true/false)")
	fmt.Println("  VECTOR_JWT_SECRET          JWT signing secret")
	fmt.Println("  VECTOR_RATE_LIMIT_ENABLED  Enable rate limiting (true/false)")
	fmt.Println("  VECTOR_HNSW_M              HNSW M parameter")
	fmt.Println("  VECTOR_HNSW_EF_CONSTRUCTION HNSW efConstruction")
	fmt.Println("  VECTOR_DIMENSIONS          Default vector dimensions")
	fmt.Println("  VECTOR_CACHE_ENABLED       Enable query cache (true/false)")
	fmt.Println("  VECTOR_CACHE_CAPACITY      Cache capacity")
	fmt.Println("  VECTOR_CACHE_TTL           Cache TTL (e.g., 5m)")
	fmt.Println("  VECTOR_DATA_DIR            Data directory path")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  vectorlite-server")
	fmt.Println("  vectorlite-server -port 9090")
	fmt.Println("  VECTOR_PORT=9090 VECTOR_HNSW_M=32 vectorlite-server")
	fmt.Println()
}
