package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agusmdev/burntop/internal/config"
	"github.com/agusmdev/burntop/internal/logger"
	"github.com/agusmdev/burntop/internal/server"
	"github.com/agusmdev/burntop/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "prune":
			cmdPrune(os.Args[2:])
			return
		case "-h", "--help", "help":
			printHelp()
			return
		case "-v", "--version", "version":
			printVersion()
			return
		}
	}

	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "Show version information")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = printHelp
	flag.Parse()

	if showVersion {
		printVersion()
		return
	}

	logLevel := parseLogLevel(os.Getenv("BURNTOP_LOG_LEVEL"))
	if strings.EqualFold(os.Getenv("BURNTOP_LOG_FORMAT"), "text") {
		logger.InitializeText(logLevel)
	} else {
		logger.Initialize(logLevel)
	}
	log := logger.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("received shutdown signal")
		cancel()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("error during shutdown", "error", err)
		}
		os.Exit(0)
	}()

	log.Info("burntop starting",
		"api_port", cfg.APIPort,
		"database", cfg.DatabaseURL,
	)

	if err := srv.ListenAndServe(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("burntop %s\n", version.Version)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Date: %s\n", version.BuildDate)
}

func printHelp() {
	fmt.Println(`burntop - AI usage-sync, leaderboard and benchmark backend

Usage: burntop [command] [options]

Commands:
  serve (default)      Start the API server
  prune                Delete synced_message_ids rows older than a retention window
  version               Show version information
  help                   Show this help message

Options:
  -h, --help            Show this help message
  -v, --version         Show version information

Environment Variables:
  BURNTOP_DATABASE_URL         Postgres connection string (default: a local burntop database)
  BURNTOP_API_PORT             API server port (default: 8080)
  BURNTOP_FRONTEND_URL         Frontend base URL, used for CORS (default: http://localhost:5173)
  BURNTOP_BACKEND_URL          Backend base URL, used for OAuth redirect assembly
  BURNTOP_SECRET_KEY           Secret key, minimum 32 characters (required)
  BURNTOP_LOG_LEVEL            Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  BURNTOP_LOG_FORMAT           Log format: json, text (default: json)
  BURNTOP_PRICING_CATALOG_URL  Pricing catalog URL
  BURNTOP_PRICING_CACHE_PATH   Pricing catalog disk cache path
  BURNTOP_RATE_LIMIT_ENABLED   Enable the sliding-window rate limiter (default: false)
  BURNTOP_SCHEDULER_ENABLED    Run the leaderboard/benchmark scheduler in-process (default: true)`)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
