package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/scribeworks/backend/docs"
	"github.com/scribeworks/backend/internal/audit"
	"github.com/scribeworks/backend/internal/config"
	"github.com/scribeworks/backend/internal/database"
	"github.com/scribeworks/backend/internal/handlers"
	"github.com/scribeworks/backend/internal/metrics"
	mW "github.com/scribeworks/backend/internal/middleware"
	"github.com/scribeworks/backend/internal/scoring"
	"github.com/scribeworks/backend/internal/services"
	"github.com/scribeworks/backend/internal/store"
	"github.com/scribeworks/backend/internal/store/memory"
	"github.com/scribeworks/backend/internal/store/postgres"
)

// @title Scribeworks Task Engine API
// @version 1.0
// @description Task locking, transcription scoring and wallet settlement
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.auto_migrate", "DATABASE_AUTO_MIGRATE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("log.format", "LOG_FORMAT")
	config.BindEnv()

	log := logrus.New()
	if err := viper.ReadInConfig(); err != nil {
		log.Infof("Config file not found, using defaults: %v", err)
	}
	if viper.GetString("log.format") != "text" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(viper.GetString("log.level")); err == nil {
		log.SetLevel(level)
	}

	cfg := config.LoadEngineConfig()

	secret := viper.GetString("jwt.secret_key")
	if secret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}

	viper.BindEnv("swagger.host", "SWAGGER_HOST")
	docs.SwaggerInfo.Host = viper.GetString("swagger.host")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var st store.Store
	switch cfg.Store {
	case "memory":
		log.Warn("[STORE] using in-memory store, data is lost on restart")
		st = memory.New()
	default:
		dbConfig := database.GetConfig()
		db, err := database.InitDB(ctx, dbConfig, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()
		if dbConfig.AutoMigrate {
			if err := database.Migrate(db, log); err != nil {
				log.WithError(err).Fatal("Failed to migrate database")
			}
		}
		st = postgres.New(db)
	}

	redisClient := database.InitRedis(ctx, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Scoring
	var scorer scoring.Adapter = scoring.NewTextAdapter()
	if cfg.ScoringURL == "" {
		log.Warn("[SCORING] SCORING_URL not set, using local word-overlap scorer")
	} else {
		scorer = scoring.NewHTTPAdapter(cfg.ScoringURL, &http.Client{Timeout: cfg.ScoringTimeout})
	}
	scorer = scoring.NewCachedAdapter(scorer, redisClient, cfg.ScoreCacheTTL, log)

	// Initialize services
	collector := metrics.NewCollector("scribeworks")
	auditLog := audit.NewLogger(log)
	vh := services.NewValidationHelper()
	events := services.NewRedisPublisher(redisClient, log)

	ledger := services.NewLedger()
	wallet := services.NewWalletService(st, ledger, auditLog, collector, log)
	registry := services.NewTaskRegistry(st, wallet, vh, events, auditLog, collector, log)
	promotion := services.NewPromotionRule(st, wallet, cfg.PromotionThreshold, cfg.PromotionBonus)
	engine := services.NewSubmissionEngine(st, registry, wallet, ledger, promotion, scorer,
		services.EngineSettings{
			ApprovalThreshold: cfg.ApprovalThreshold,
			ScoringTimeout:    cfg.ScoringTimeout,
		},
		vh, events, auditLog, collector, log)
	accounts := services.NewAccountService(st, ledger, vh, auditLog, log)

	sweeper, err := services.NewSweeper(registry, cfg.SweepSchedule, collector, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to schedule lock sweeper")
	}
	sweeper.Start()

	router := handlers.NewRouter(handlers.RouterConfig{
		Tasks:          registry,
		Submissions:    engine,
		Accounts:       accounts,
		Wallet:         wallet,
		JWTSecret:      secret,
		Limiter:        mW.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Metrics:        collector.Handler(),
		MediaDir:       cfg.MediaDir,
		RequestLogging: true,
		Log:            log,
	})

	port := viper.GetString("server.port")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sweeper.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Server stopped")
}
