package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/auth"
	"github.com/matchpulse/backend/internal/cache"
	"github.com/matchpulse/backend/internal/config"
	"github.com/matchpulse/backend/internal/database"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/handlers"
	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/relay"
	"github.com/matchpulse/backend/internal/seed"
	"github.com/matchpulse/backend/internal/services"
	"github.com/matchpulse/backend/internal/wspool"
)

var rootCmd = &cobra.Command{
	Use:   "matchpulse",
	Short: "MatchPulse - live engagement backend for sports events",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Log.Info("✅ Migrations complete")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed [dev|test|clean]",
	Short: "Seed the database with fixtures",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := "dev"
		if len(args) > 0 {
			mode = args[0]
		}

		cfg := config.Load()
		if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}

		seeder := seed.NewSeeder(db)
		switch mode {
		case "dev":
			return seeder.SeedDev()
		case "test":
			return seeder.SeedTest()
		case "clean":
			return seeder.Clean()
		default:
			return fmt.Errorf("unknown seed mode %q (want dev, test or clean)", mode)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(database.Options{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DatabaseURL,
		Path:    cfg.SQLitePath,
		Verbose: cfg.IsDevelopment(),
	})
}

func runServer() error {
	cfg := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	if cfg.JWTSecret == "" {
		logger.Log.Fatal("JWT_SECRET environment variable is required")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// Cache backend: Redis when reachable, in-process otherwise
	var store cache.Store
	if redisClient, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword); err != nil {
		logger.Log.Warn("⚠️ Redis unavailable, caches will not persist across restarts", zap.Error(err))
		store = cache.NewMemoryStore()
	} else {
		store = cache.NewRedisStore(redisClient)
	}

	cacheService := cache.New(store)
	if err := cacheService.RegisterDefaults(); err != nil {
		return fmt.Errorf("failed to register caches: %w", err)
	}
	cacheService.Start()

	hub := relay.NewHub()
	go hub.Run()

	pool := wspool.New(wspool.DefaultConfig(), wspool.WebsocketDialer{})
	pool.Start()

	feeds := feed.NewManager(pool, cfg.RelayURL)

	authService := auth.NewService(db, []byte(cfg.JWTSecret))
	leaderboard := services.NewLeaderboardService(db, cacheService, feeds)

	h := handlers.New(handlers.Deps{
		Auth:        authService,
		Cache:       cacheService,
		Feeds:       feeds,
		Pool:        pool,
		RelayHub:    hub,
		Users:       services.NewUserService(db, cacheService, feeds),
		Polls:       services.NewPollService(db, cacheService, feeds),
		QA:          services.NewQAService(db, cacheService, feeds),
		Discussions: services.NewDiscussionService(db, feeds),
		Mentorship:  services.NewMentorshipService(db, feeds),
		Reactions:   services.NewReactionService(db, feeds),
		Achievement: services.NewAchievementService(db, cacheService, feeds, leaderboard),
		Leaderboard: leaderboard,
	})

	router := handlers.NewRouter(cfg, h, relay.NewHandler(hub, authService))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("🚀 MatchPulse server starting",
			zap.String("port", cfg.Port),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.Log.Info("🛑 Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("HTTP shutdown failed", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Pool shutdown failed", zap.Error(err))
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Relay shutdown failed", zap.Error(err))
	}
	if err := cacheService.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Cache shutdown failed", zap.Error(err))
	}

	logger.Log.Info("👋 Server stopped")
	return nil
}
