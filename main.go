package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"strategy-game-server/config"
	"strategy-game-server/handlers"
	"strategy-game-server/logger"
	"strategy-game-server/middleware"
	"strategy-game-server/services"
	"strategy-game-server/utils"
	"strategy-game-server/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️  No .env file found, reading environment variables directly")
	}
	logger.Init()
	log := logger.Component("main")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules := cfg.Rules()
	hub := services.NewHub()
	gameService := services.NewGameService(store, hub, services.Options{
		Rules:    rules,
		FogOfWar: cfg.FogOfWar,
	})

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
		Immutable: true,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken))

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupGameRoutes(app, gameService, hub)

	if cfg.TurnTimeLimit > 0 {
		sched, err := gameService.StartTurnTimeoutScheduler(cfg.TurnTimeLimit, time.Minute)
		if err != nil {
			log.WithError(err).Fatal("failed to start turn timeout scheduler")
		}
		defer func() { _ = sched.Shutdown() }()
	}

	if cfg.R2.Enabled() {
		uploader, err := utils.NewR2Uploader(ctx, cfg.R2)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize R2 client")
		}
		archiver := workers.NewArchiveWorker(store, uploader, rules)
		go archiver.Poll(ctx, cfg.ArchiveInterval)
	} else {
		log.Warn("⚠️  R2 not configured, finished games will not be archived")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.WithError(err).Error("Server error")
		}
	}()

	log.Infof("✅ Server running on http://localhost:%s", cfg.Port)
	log.Infof("✅ Store driver: %s", cfg.DBDriver)
	log.Info("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Infof("✅ CORS configured for origins: %s", allowedOrigins)

	<-ctx.Done()
	log.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("Server shutdown incomplete")
	}
}

// openStore connects the configured persistence backend and migrates it.
func openStore(cfg config.Config) (services.Store, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverMemory:
		return services.NewMemoryStore(), nil
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		// one writer at a time
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store := services.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}
