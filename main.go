// Package main provides the main entry point for the print shop pricing engine
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/printshop-os/pricing-engine/app/handlers"
	"github.com/printshop-os/pricing-engine/app/middleware"
	"github.com/printshop-os/pricing-engine/app/router"
	"github.com/printshop-os/pricing-engine/app/services"
	businessflow "github.com/printshop-os/pricing-engine/business_flow"
	"github.com/printshop-os/pricing-engine/config"
	_ "github.com/printshop-os/pricing-engine/docs"
	"github.com/printshop-os/pricing-engine/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/printshop-os/pricing-engine/app/scheduler"
	"github.com/printshop-os/pricing-engine/utils"
)

// Application bundles the wired server with everything it must stop on exit.
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting pricing engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closeLogs, err := setupLogging(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer closeLogs()

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Shutdown on SIGINT or SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Serve in the background so the main goroutine can watch for signals
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		var listenErr error
		if cfg.Security.TLSEnabled {
			listenErr = app.server.Listen(address, fiber.ListenConfig{
				CertFile:    cfg.Security.TLSCertFile,
				CertKeyFile: cfg.Security.TLSKeyFile,
			})
		} else {
			listenErr = app.server.Listen(address)
		}
		if listenErr != nil {
			log.Fatalf("Failed to start server: %v", listenErr)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Reporters and cache workers stop before the listener drains
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging routes the standard logger through a rotating file sink when
// file output is configured. The returned close function flushes the sink.
func setupLogging(cfg config.LoggingConfig) (func(), error) {
	if cfg.Output == "stdout" || cfg.Output == "" || cfg.FilePath == "" {
		return func() {}, nil
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(rotator)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	default:
		rotator.Close()
		return nil, fmt.Errorf("unknown log output: %s", cfg.Output)
	}

	log.SetFlags(log.LstdFlags | log.LUTC)
	log.Printf("Logging to %s (max %dMB, %d backups, %d days)", cfg.FilePath, cfg.MaxSize, cfg.MaxBackups, cfg.MaxAge)

	return func() { rotator.Close() }, nil
}

// initializeDatabase opens the gorm handle and sizes its connection pool.
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormLogger := logger.Default
	if cfg.SlowQueryLog {
		gormLogger = logger.New(log.Default(), logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Pool limits live on the database/sql handle under gorm
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache builds the calculation cache store for the configured
// provider and returns it with a stop function for its background work
func initializeCache(cfg config.CacheConfig) (services.CacheStore, func(), error) {
	if !cfg.Enabled || cfg.Provider == "none" {
		return services.NewNoopCacheStore(), func() {}, nil
	}

	switch cfg.Provider {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		// the configured db number wins over the one in the URL
		opt.DB = cfg.RedisDB

		rc := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
		store := services.NewRedisCacheStore(rc)
		stopMonitor := startCacheHealthMonitor(context.Background(), store, utils.CacheHealthInterval)
		return store, func() {
			stopMonitor()
			_ = rc.Close()
		}, nil

	case "memory":
		store := services.NewMemoryCacheStore()
		stopSweeper := startMemorySweeper(store, cfg.CleanupInterval)
		log.Println("In-process calculation cache enabled")
		return store, stopSweeper, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache provider: %s", cfg.Provider)
	}
}

// startCacheHealthMonitor pings the cache store on an interval and logs
// failures. The returned function stops the monitor.
func startCacheHealthMonitor(parent context.Context, store services.CacheStore, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := store.Ping(ctx); err != nil {
					log.Printf("Cache healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// startMemorySweeper periodically drops expired entries from the in-process cache
func startMemorySweeper(store *services.MemoryCacheStore, interval time.Duration) func() {
	sweepCtx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if dropped := store.Sweep(); dropped > 0 {
					log.Printf("Cache sweep dropped %d expired entries", dropped)
				}
			}
		}
	}()
	return cancel
}

// initializeCostProvider selects the garment cost source. The static provider
// reads a JSON cost table from configuration; everything else goes over HTTP.
func initializeCostProvider(cfg *config.CostLookupConfig) (services.CostProvider, error) {
	switch cfg.Provider {
	case "static":
		costs := map[string]decimal.Decimal{}
		if cfg.StaticCosts != "" {
			if err := json.Unmarshal([]byte(cfg.StaticCosts), &costs); err != nil {
				return nil, fmt.Errorf("invalid static cost table: %w", err)
			}
		}
		log.Printf("Static cost provider initialized with %d garments", len(costs))
		return services.NewStaticCostProvider(costs), nil
	default:
		log.Printf("HTTP cost provider initialized for %s", cfg.BaseURL)
		return services.NewHTTPCostProvider(cfg), nil
	}
}

// initializeApplication wires repositories, flows, handlers, and the router
// in dependency order.
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	cache, stopCache, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, stopCache)

	// Repositories over the shared gorm handle
	ruleRepo := repository.NewPricingRuleRepository(db)
	historyRepo := repository.NewCalculationHistoryRepository(db)
	seqRepo := repository.NewSequenceCounterRepository(db)

	// The ruleset generation mirror must be loaded before traffic is served,
	// otherwise cache keys from a previous run would be treated as current
	generation := businessflow.NewGenerationCounter(seqRepo)
	if err := generation.Load(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load ruleset generation: %w", err)
	}
	log.Printf("Ruleset generation loaded: %d", generation.Current())

	// Initialize services
	costProvider, err := initializeCostProvider(&cfg.CostLookup)
	if err != nil {
		return nil, err
	}

	var tokenVerifier services.TokenVerifier
	if cfg.JWT.Enabled {
		tokenVerifier, err = services.NewTokenVerifier(&cfg.JWT)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
		}
		log.Printf("Token verifier initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)
	}

	engineMetrics := businessflow.NewEngineMetrics()

	// Initialize flows
	pricingFlow := businessflow.NewPricingFlow(
		ruleRepo,
		historyRepo,
		generation,
		cache,
		costProvider,
		engineMetrics,
		&cfg.Cache,
		cfg.CostLookup.Timeout,
	)

	ruleFlow := businessflow.NewAdminRuleFlow(
		db,
		ruleRepo,
		generation,
		cache,
		&cfg.Cache,
	)

	// Initialize handlers
	pricingHandler := handlers.NewPricingHandler(pricingFlow)
	ruleAdminHandler := handlers.NewRuleAdminHandler(ruleFlow)

	// Initialize auth middleware for the admin surface
	var authMiddleware *middleware.AuthMiddleware
	if tokenVerifier != nil {
		authMiddleware = middleware.NewAuthMiddleware(tokenVerifier)
	}

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		pricingHandler,
		ruleAdminHandler,
		authMiddleware,
	)

	if cfg.Metrics.Enabled && cfg.Metrics.ReportInterval > 0 {
		reporter := scheduler.NewMetricsReporter(pricingFlow, nil, cfg.Metrics.ReportInterval)
		stopReporter := reporter.Start(context.Background())
		stopFuncs = append(stopFuncs, stopReporter)
	}

	// Unwrap the concrete router to reach the fiber app
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
