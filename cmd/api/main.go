package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agrodrone/backend/internal/analysis"
	"github.com/agrodrone/backend/internal/api/handlers"
	"github.com/agrodrone/backend/internal/auth"
	"github.com/agrodrone/backend/internal/cache/redis"
	"github.com/agrodrone/backend/internal/chat"
	"github.com/agrodrone/backend/internal/llm"
	"github.com/agrodrone/backend/internal/metrics"
	"github.com/agrodrone/backend/internal/middleware/ratelimit"
	"github.com/agrodrone/backend/internal/middleware/security"
	"github.com/agrodrone/backend/internal/middleware/validation"
	"github.com/agrodrone/backend/internal/storage"
	"github.com/agrodrone/backend/internal/storage/files"
	"github.com/agrodrone/backend/internal/storage/memory"
	"github.com/agrodrone/backend/internal/storage/postgres"
	"github.com/agrodrone/backend/internal/storage/sqlite"
	"github.com/agrodrone/backend/internal/vegetation"
	"github.com/agrodrone/backend/pkg/config"
	appLogger "github.com/agrodrone/backend/pkg/logger"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AgroDrone API Server", zap.String("environment", cfg.Server.Environment))

	ctx := context.Background()
	metrics.Init()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer repo.Close()

	readiness := map[string]handlers.Pinger{"storage": repo}

	var (
		replyCache  chat.ReplyCache
		invalidator analysis.ReplyInvalidator
	)
	if cfg.Redis.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		redisClient, err := redis.NewClient(ctx, addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ReplyTTL())
		if err != nil {
			appLogger.Warn("Redis unavailable, reply cache disabled", zap.String("addr", addr), zap.Error(err))
		} else {
			defer redisClient.Close()
			replyCache = redisClient
			invalidator = redisClient
			readiness["redis"] = redisClient
		}
	}

	fileStore, err := files.NewLocalStore(cfg.Upload.Dir)
	if err != nil {
		appLogger.Fatal("Failed to prepare upload directory", zap.Error(err))
	}

	tokenizer := llm.NewTokenizer()
	provider := chat.NewCachedProvider(func(ctx context.Context) (chat.Model, chat.Tokenizer, error) {
		client, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, nil, err
		}
		return client, tokenizer, nil
	}, cfg.Chat.ModelCacheTTL())

	dispatcher := chat.NewDispatcher(repo, provider, chat.Options{
		Timeout:          cfg.Chat.GenerationTimeout(),
		MaxResponseChars: cfg.Chat.MaxResponseChars,
		PromptTokenLimit: cfg.Chat.PromptTokenLimit,
		Temperature:      cfg.LLM.Temperature,
		TopP:             cfg.LLM.TopP,
		MaxTokens:        cfg.LLM.MaxTokens,
		Cache:            replyCache,
	})

	analysisService := analysis.NewService(repo, vegetation.ImageDecoder{MaxPixels: cfg.Upload.MaxPixels}, fileStore, invalidator)

	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.Issuer,
		time.Duration(cfg.Auth.AccessTTLMin)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour,
	)

	chatLimiter := ratelimit.New(ratelimit.Config{
		Name:                 "chat",
		MaxRequestsPerMinute: cfg.RateLimit.ChatPerMinute,
		Logger:               appLogger.Named("ratelimit.chat"),
	})
	defer chatLimiter.Stop()

	analysisLimiter := ratelimit.New(ratelimit.Config{
		Name:                 "analysis",
		MaxRequestsPerMinute: cfg.RateLimit.AnalysisPerMinute,
		Logger:               appLogger.Named("ratelimit.analysis"),
	})
	defer analysisLimiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.IsDevelopment(),
	}))

	validationCfg := validation.Config{Logger: appLogger.Named("validation")}

	api := app.Group("/api/v1", validation.ContentType(validationCfg))
	handlers.Routes{
		Auth:            handlers.NewAuthHandler(repo, tokens),
		Analysis:        handlers.NewAnalysisHandler(analysisService, repo, fileStore, cfg.Upload.MaxImages),
		Chat:            handlers.NewChatHandler(dispatcher, repo),
		WebSocket:       handlers.NewWebSocketHandler(dispatcher, repo),
		Health:          handlers.NewHealthHandler(readiness),
		Tokens:          tokens,
		Validation:      validationCfg,
		ChatLimiter:     chatLimiter.Middleware(),
		AnalysisLimiter: analysisLimiter.Middleware(),
	}.Register(api)

	app.Get("/metrics", metrics.MetricsHandler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		client, err := postgres.NewClient(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	case "memory":
		appLogger.Warn("Using in-memory storage; data is lost on restart")
		return memory.New(), nil
	default:
		client, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if err := client.InitSchema(ctx); err != nil {
			client.Close()
			return nil, err
		}
		return client, nil
	}
}
