package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"eventfeeds/internal/config"
	"eventfeeds/internal/database"
	"eventfeeds/internal/feed"
	"eventfeeds/internal/logger"
	"eventfeeds/internal/richtext"
	"eventfeeds/internal/server"
)

var (
	// Version will be set during build
	Version = "dev"

	// Command line flags
	configPath   = flag.String("config", "", "Path to YAML config file (optional)")
	port         = flag.Int("port", 0, "Port to run the server on (default: 8080 or EVENTFEEDS_PORT)")
	dbPath       = flag.String("db", "", "Path to database file (default: data/eventfeeds.db or EVENTFEEDS_DB_PATH)")
	fixturesPath = flag.String("fixtures", "", "YAML fixtures to load into a fresh database before serving")
	version      = flag.Bool("version", false, "Print version information")
	prodMode     = flag.Bool("prod", false, "Enable production mode (quieter request logging)")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("eventfeeds version %s\n", Version)
		return
	}

	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *prodMode {
		cfg.Server.Production = true
	}

	zl, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("eventfeeds stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	zl.Info("starting eventfeeds",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Path),
		zap.String("event_slug", cfg.Feeds.EventSlug),
		zap.Bool("production", cfg.Server.Production))

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.NewDB(cfg.Database.Path, database.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *fixturesPath != "" {
		if err := db.LoadFixturesFile(ctx, *fixturesPath); err != nil {
			return fmt.Errorf("failed to load fixtures: %w", err)
		}
		zl.Info("fixtures loaded", zap.String("path", *fixturesPath))
	}

	pipeline, err := richtext.New(cfg.Feeds.RichtextFilters, cfg.Site.URL)
	if err != nil {
		return fmt.Errorf("failed to build richtext pipeline: %w", err)
	}

	feedService := feed.NewService(db, zl.Named("feed"), feed.Config{
		SiteTitle:   cfg.Site.Title,
		SiteTagline: cfg.Site.Tagline,
		SiteURL:     cfg.Site.URL,
		EventSlug:   cfg.Feeds.EventSlug,
		RSSLimit:    cfg.Feeds.RSSLimit,
	}, pipeline)

	srv := server.NewServer(db, zl.Named("http"), feedService, server.Config{
		EventSlug:      cfg.Feeds.EventSlug,
		SiteURL:        cfg.Site.URL,
		ProductionMode: cfg.Server.Production,
	})

	return srv.Start(ctx, cfg.GetAddress())
}
